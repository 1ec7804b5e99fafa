package judges

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// VerdictCache stores terminal verdicts.
type VerdictCache interface {
	// LoadVerdict returns cached terminal verdict.
	LoadVerdict(ctx context.Context, judge Judge, id SubmissionID) (Verdict, bool, error)
	// StoreVerdict stores terminal verdict.
	StoreVerdict(ctx context.Context, judge Judge, id SubmissionID, verdict Verdict) error
}

// NewMemoryVerdictCache creates in-memory verdict cache.
func NewMemoryVerdictCache() VerdictCache {
	return &memoryVerdictCache{verdicts: map[verdictKey]Verdict{}}
}

type verdictKey struct {
	judge Judge
	id    SubmissionID
}

type memoryVerdictCache struct {
	mutex    sync.RWMutex
	verdicts map[verdictKey]Verdict
}

func (c *memoryVerdictCache) LoadVerdict(_ context.Context, judge Judge, id SubmissionID) (Verdict, bool, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	v, ok := c.verdicts[verdictKey{judge, id}]
	return v, ok, nil
}

func (c *memoryVerdictCache) StoreVerdict(_ context.Context, judge Judge, id SubmissionID, verdict Verdict) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.verdicts[verdictKey{judge, id}] = verdict
	return nil
}

const (
	defaultPollAttempts = 60
	defaultPollDelay    = 2 * time.Second
	defaultPollMaxDelay = 15 * time.Second
)

// Poller repeatedly checks verdict until it becomes terminal.
type Poller struct {
	// MaxAttempts contains maximal amount of verdict checks.
	MaxAttempts int
	// Delay contains delay before the second check.
	Delay time.Duration
	// MaxDelay limits delay growth.
	MaxDelay time.Duration
	// Multiplier contains delay growth factor, values not greater
	// than one mean constant delay.
	Multiplier float64
	// Timeout limits total polling time, zero means no limit.
	Timeout time.Duration
	// Cache contains terminal verdicts.
	Cache VerdictCache
}

// NewPoller creates poller with default settings.
func NewPoller() *Poller {
	return &Poller{
		MaxAttempts: defaultPollAttempts,
		Delay:       defaultPollDelay,
		MaxDelay:    defaultPollMaxDelay,
		Multiplier:  1.5,
		Cache:       NewMemoryVerdictCache(),
	}
}

// Wait polls verdict of submission until it is terminal.
//
// Session should be authenticated by judge, even when verdict is cached.
// Network failures are retried, parse failures are returned immediately.
// When attempts are exhausted or context is done, ErrPollTimeout
// is returned.
func (p *Poller) Wait(
	ctx context.Context, judge JudgeSession, s *Session, id SubmissionID,
) (Verdict, error) {
	if err := s.check(judge); err != nil {
		return Pending, err
	}
	if p.Cache != nil {
		v, ok, err := p.Cache.LoadVerdict(ctx, judge.Judge(), id)
		if err != nil {
			return Pending, err
		}
		if ok && v.IsTerminal() {
			return v, nil
		}
	}
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = defaultPollAttempts
	}
	delays := p.newBackOff()
	var lastErr error
	for attempt := 1; ; attempt++ {
		v, err := judge.PollVerdict(ctx, s, id)
		switch {
		case err == nil:
			if v.IsTerminal() {
				if p.Cache != nil {
					if err := p.Cache.StoreVerdict(ctx, judge.Judge(), id, v); err != nil {
						return v, err
					}
				}
				return v, nil
			}
		case errors.Is(err, ErrNetworkFailure):
			lastErr = err
		case ctx.Err() != nil:
			return Pending, fmt.Errorf("%w: %v", ErrPollTimeout, ctx.Err())
		default:
			return Pending, err
		}
		if attempt >= attempts {
			break
		}
		if err := sleep(ctx, delays.NextBackOff()); err != nil {
			return Pending, fmt.Errorf("%w: %v", ErrPollTimeout, err)
		}
	}
	if lastErr != nil {
		return Pending, fmt.Errorf(
			"%w: %d attempts, last error: %v", ErrPollTimeout, attempts, lastErr,
		)
	}
	return Pending, fmt.Errorf("%w: %d attempts", ErrPollTimeout, attempts)
}

func (p *Poller) newBackOff() backoff.BackOff {
	if p.Multiplier <= 1 {
		return backoff.NewConstantBackOff(p.Delay)
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Delay
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0
	b.MaxInterval = p.MaxDelay
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
