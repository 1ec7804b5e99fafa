package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/udovin/gosql"

	"github.com/competitive-cli/judge/internal/archive"
	"github.com/competitive-cli/judge/internal/config"
	"github.com/competitive-cli/judge/internal/history"
	"github.com/competitive-cli/judge/internal/pkg/files"
	"github.com/competitive-cli/judge/internal/pkg/logs"
	"github.com/competitive-cli/judge/internal/pkg/markup"
	"github.com/competitive-cli/judge/internal/pkg/web"
	"github.com/competitive-cli/judge/pkg/judges"
)

// ErrNoAccount is returned when config has no account for judge.
var ErrNoAccount = errors.New("account is not configured")

// PasswordPrompt asks password of account.
type PasswordPrompt func(judge judges.Judge, username string) (string, error)

// Core manages all available resources.
type Core struct {
	// Config contains config.
	Config config.Config
	// DB stores database connection of history.
	DB *gosql.DB
	// History contains submission history, nil when it is not configured.
	History *history.Store
	// Archive contains archive of submitted sources, nil when it is
	// not configured.
	Archive archive.Archive
	// Poller waits for terminal verdicts.
	Poller *judges.Poller
	// Prompt is called when account has no password.
	Prompt PasswordPrompt
	// logger contains logger.
	logger *logs.Logger
}

type Option func(*Core)

// WithLogger overrides logger built from config.
func WithLogger(logger *logs.Logger) Option {
	return func(c *Core) {
		c.logger = logger
	}
}

// WithPrompt sets password prompt.
func WithPrompt(prompt PasswordPrompt) Option {
	return func(c *Core) {
		c.Prompt = prompt
	}
}

// NewCore creates core instance from config.
func NewCore(cfg config.Config, options ...Option) (*Core, error) {
	c := Core{Config: cfg}
	for _, option := range options {
		option(&c)
	}
	if c.logger == nil {
		c.logger = logs.NewLogger(logs.WithLevel(log.Lvl(cfg.LogLevel)))
	}
	c.Poller = newPoller(cfg.Poll)
	if cfg.History != nil {
		conn, err := cfg.History.Create()
		if err != nil {
			return nil, fmt.Errorf("cannot open history: %w", err)
		}
		c.DB = conn
		c.History = history.NewStore(conn, c.logger)
		c.Poller.Cache = c.History
	}
	if cfg.Archive != nil {
		a, err := archive.NewArchive(*cfg.Archive)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("cannot open archive: %w", err)
		}
		c.Archive = a
	}
	return &c, nil
}

func newPoller(cfg config.Poll) *judges.Poller {
	poller := judges.NewPoller()
	if cfg.Attempts > 0 {
		poller.MaxAttempts = cfg.Attempts
	}
	if cfg.Delay > 0 {
		poller.Delay = time.Duration(cfg.Delay)
	}
	if cfg.MaxDelay > 0 {
		poller.MaxDelay = time.Duration(cfg.MaxDelay)
	}
	if cfg.Multiplier > 0 {
		poller.Multiplier = cfg.Multiplier
	}
	if cfg.Timeout > 0 {
		poller.Timeout = time.Duration(cfg.Timeout)
	}
	return poller
}

// Logger returns logger instance.
func (c *Core) Logger() *logs.Logger {
	return c.logger
}

// Init prepares history tables.
func (c *Core) Init(ctx context.Context) error {
	if c.History == nil {
		return nil
	}
	return c.History.Init(ctx)
}

// Close releases database connection.
func (c *Core) Close() {
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.logger.Warn("Cannot close history", err)
		}
		c.DB = nil
	}
}

// NewJudge creates judge adapter with its own cookie jar.
func (c *Core) NewJudge(name string) (judges.JudgeSession, error) {
	clientOptions := []web.ClientOption{web.WithLogger(c.logger)}
	if c.Config.HTTP.Timeout > 0 {
		clientOptions = append(clientOptions, web.WithTimeout(time.Duration(c.Config.HTTP.Timeout)))
	}
	if c.Config.HTTP.UserAgent != "" {
		clientOptions = append(clientOptions, web.WithUserAgent(c.Config.HTTP.UserAgent))
	}
	deps := judges.Deps{
		Fetcher:   web.NewClient(clientOptions...),
		Extractor: markup.NewExtractor(),
		Finder:    files.Finder{DefaultPath: c.Config.SourceDir},
	}
	var options []judges.Option
	if account, ok := c.Config.Account(name); ok {
		if account.BaseURL != "" {
			options = append(options, judges.WithBaseURL(account.BaseURL))
		}
		if account.APIURL != "" {
			options = append(options, judges.WithAPIURL(account.APIURL))
		}
	}
	return judges.New(name, deps, options...)
}

// Credentials returns configured credentials of judge account.
func (c *Core) Credentials(judge judges.Judge) (judges.Credentials, error) {
	account, ok := c.Config.Account(string(judge))
	if !ok || account.Username == "" {
		return judges.Credentials{}, fmt.Errorf("%w: %s", ErrNoAccount, judge)
	}
	creds := judges.Credentials{Username: account.Username}
	if !account.Password.Empty() {
		password, err := account.Password.Secret()
		if err != nil {
			return judges.Credentials{}, err
		}
		creds.Password = password
		return creds, nil
	}
	if c.Prompt == nil {
		return judges.Credentials{}, fmt.Errorf("%w: %s has no password", ErrNoAccount, judge)
	}
	password, err := c.Prompt(judge, account.Username)
	if err != nil {
		return judges.Credentials{}, err
	}
	creds.Password = password
	return creds, nil
}

// Login creates judge adapter and logs in with configured account.
func (c *Core) Login(ctx context.Context, name string) (judges.JudgeSession, *judges.Session, error) {
	judge, creds, err := c.PrepareLogin(name)
	if err != nil {
		return nil, nil, err
	}
	s, err := c.LoginWith(ctx, judge, creds)
	if err != nil {
		return nil, nil, err
	}
	return judge, s, nil
}

// PrepareLogin creates judge adapter and resolves its credentials.
//
// Password prompt can be called, so PrepareLogin should not be called
// concurrently.
func (c *Core) PrepareLogin(name string) (judges.JudgeSession, judges.Credentials, error) {
	judge, err := c.NewJudge(name)
	if err != nil {
		return nil, judges.Credentials{}, err
	}
	creds, err := c.Credentials(judge.Judge())
	if err != nil {
		return nil, judges.Credentials{}, err
	}
	return judge, creds, nil
}

// LoginWith logs in judge with already resolved credentials.
func (c *Core) LoginWith(
	ctx context.Context, judge judges.JudgeSession, creds judges.Credentials,
) (*judges.Session, error) {
	s, err := judge.Login(ctx, creds)
	if err != nil {
		return nil, err
	}
	c.logger.Debug(
		"Logged in",
		logs.Any("judge", string(judge.Judge())),
		logs.Any("username", creds.Username),
	)
	return s, nil
}

// Submit submits solution and stores it in archive and history.
func (c *Core) Submit(
	ctx context.Context, judge judges.JudgeSession, s *judges.Session,
	req judges.SubmitRequest,
) (judges.SubmissionID, error) {
	id, err := judge.SubmitSolution(ctx, s, req)
	if err != nil {
		return "", err
	}
	logger := c.logger.With(
		logs.Any("judge", string(judge.Judge())),
		logs.Any("submission", string(id)),
	)
	logger.Info("Solution submitted")
	sub, ok := s.Submission(id)
	if !ok {
		return id, nil
	}
	var entry archive.Entry
	if c.Archive != nil {
		content, err := os.ReadFile(sub.File)
		if err != nil {
			return id, fmt.Errorf("cannot read source: %w", err)
		}
		entry, err = c.Archive.Save(ctx, sub.File, content)
		if err != nil {
			return id, err
		}
		logger.Debug("Source archived", logs.Any("key", entry.Key))
	}
	if c.History != nil {
		if err := c.History.SaveSubmission(
			ctx, judge.Judge(), s.Username(), sub, entry,
		); err != nil {
			return id, err
		}
	}
	return id, nil
}

// Wait polls submission verdict until it is terminal.
func (c *Core) Wait(
	ctx context.Context, judge judges.JudgeSession, s *judges.Session,
	id judges.SubmissionID,
) (judges.Verdict, error) {
	verdict, err := c.Poller.Wait(ctx, judge, s, id)
	if err != nil {
		return verdict, err
	}
	c.logger.Info(
		"Verdict received",
		logs.Any("judge", string(judge.Judge())),
		logs.Any("submission", string(id)),
		logs.Any("verdict", verdict.String()),
	)
	return verdict, nil
}

// FetchHistory fetches submission history and stores it.
func (c *Core) FetchHistory(
	ctx context.Context, judge judges.JudgeSession, s *judges.Session,
) ([]judges.SubmissionRecord, error) {
	records, err := judge.FetchHistory(ctx, s)
	if err != nil {
		return nil, err
	}
	if c.History != nil {
		if err := c.History.SaveRecords(ctx, judge.Judge(), s.Username(), records); err != nil {
			return records, err
		}
	}
	return records, nil
}

// SearchHistory fetches submissions matching filter and stores them.
func (c *Core) SearchHistory(
	ctx context.Context, judge judges.JudgeSession, s *judges.Session,
	filter judges.HistoryFilter,
) ([]judges.SubmissionRecord, error) {
	records, err := judge.SearchHistory(ctx, s, filter)
	if err != nil {
		return nil, err
	}
	if c.History != nil && len(records) > 0 {
		if err := c.History.SaveRecords(ctx, judge.Judge(), s.Username(), records); err != nil {
			return records, err
		}
	}
	return records, nil
}
