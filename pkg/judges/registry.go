package judges

import (
	"fmt"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Deps contains collaborators of adapter.
type Deps struct {
	Fetcher   PageFetcher
	Extractor PageExtractor
	Finder    FileFinder
	// Clock is used for relative submission times.
	Clock Clock
}

func (d Deps) validate() error {
	if d.Fetcher == nil {
		return fmt.Errorf("fetcher is not specified")
	}
	if d.Extractor == nil {
		return fmt.Errorf("extractor is not specified")
	}
	if d.Finder == nil {
		return fmt.Errorf("file finder is not specified")
	}
	return nil
}

func (d Deps) now() Clock {
	if d.Clock == nil {
		return timeNow
	}
	return d.Clock
}

// Option configures adapter created by New.
type Option func(*options)

type options struct {
	baseURL string
	apiURL  string
}

// WithBaseURL overrides judge site URL.
func WithBaseURL(url string) Option {
	return func(o *options) {
		o.baseURL = strings.TrimRight(url, "/")
	}
}

// WithAPIURL overrides auxiliary API URL (uHunt for UVa).
func WithAPIURL(url string) Option {
	return func(o *options) {
		o.apiURL = strings.TrimRight(url, "/")
	}
}

type constructor func(Deps, options) (JudgeSession, error)

var constructors = map[Judge]constructor{
	UVa: func(d Deps, o options) (JudgeSession, error) {
		cfg := DefaultUVaConfig()
		if o.baseURL != "" {
			cfg.Host = o.baseURL
		}
		if o.apiURL != "" {
			cfg.UHunt = o.apiURL
		}
		return NewUVa(cfg, d)
	},
	CodeChef: func(d Deps, o options) (JudgeSession, error) {
		cfg := DefaultCodeChefConfig()
		if o.baseURL != "" {
			cfg.Host = o.baseURL
		}
		return NewCodeChef(cfg, d)
	},
	Codeforces: func(d Deps, o options) (JudgeSession, error) {
		cfg := DefaultCodeforcesConfig()
		if o.baseURL != "" {
			cfg.Host = o.baseURL
		}
		return NewCodeforces(cfg, d)
	},
}

// New creates adapter for judge with the given name.
func New(name string, deps Deps, opts ...Option) (JudgeSession, error) {
	ctor, ok := constructors[Judge(strings.ToLower(strings.TrimSpace(name)))]
	if !ok {
		return nil, fmt.Errorf("judge %q is not supported", name)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return ctor(deps, o)
}

// Judges returns sorted list of supported judges.
func Judges() []Judge {
	judges := maps.Keys(constructors)
	slices.Sort(judges)
	return judges
}
