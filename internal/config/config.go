package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/labstack/gommon/log"
)

// Version contains version of judge client.
var Version = "development"

// Config contains configuration of judge client.
type Config struct {
	// LogLevel contains minimal level of logged messages.
	LogLevel LogLevel `json:"log_level,omitempty"`
	// SourceDir contains directory where solutions are searched.
	SourceDir string `json:"source_dir,omitempty"`
	// HTTP contains page fetcher config.
	HTTP HTTP `json:"http"`
	// Poll contains verdict poller config.
	Poll Poll `json:"poll"`
	// Judges contains accounts by judge name.
	Judges map[string]Account `json:"judges,omitempty"`
	// History contains database of submission history.
	History *DB `json:"history,omitempty"`
	// Archive contains storage of submitted sources.
	Archive *Storage `json:"archive,omitempty"`
}

// HTTP contains page fetcher config.
type HTTP struct {
	Timeout   Duration `json:"timeout,omitempty"`
	UserAgent string   `json:"user_agent,omitempty"`
}

// Poll contains verdict poller config.
type Poll struct {
	Attempts   int      `json:"attempts,omitempty"`
	Delay      Duration `json:"delay,omitempty"`
	MaxDelay   Duration `json:"max_delay,omitempty"`
	Multiplier float64  `json:"multiplier,omitempty"`
	Timeout    Duration `json:"timeout,omitempty"`
}

// Account contains judge account.
type Account struct {
	Username string `json:"username"`
	Password Secret `json:"password,omitempty"`
	// BaseURL overrides judge site URL.
	BaseURL string `json:"base_url,omitempty"`
	// APIURL overrides auxiliary API URL.
	APIURL string `json:"api_url,omitempty"`
}

// Account returns account for the judge.
func (c Config) Account(judge string) (Account, bool) {
	account, ok := c.Judges[strings.ToLower(judge)]
	return account, ok
}

// Duration represents JSON encoded duration like "1m30s".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(bytes []byte) error {
	var s string
	if err := json.Unmarshal(bytes, &s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// LogLevel represents level of logging.
type LogLevel log.Lvl

var logLevelNames = map[LogLevel]string{
	LogLevel(log.DEBUG): "debug",
	LogLevel(log.INFO):  "info",
	LogLevel(log.WARN):  "warn",
	LogLevel(log.ERROR): "error",
	LogLevel(log.OFF):   "off",
}

func (l LogLevel) MarshalText() ([]byte, error) {
	name, ok := logLevelNames[l]
	if !ok {
		return nil, fmt.Errorf("unsupported log level %d", l)
	}
	return []byte(name), nil
}

func (l *LogLevel) UnmarshalText(text []byte) error {
	for level, name := range logLevelNames {
		if strings.EqualFold(name, string(text)) {
			*l = level
			return nil
		}
	}
	return fmt.Errorf("unsupported log level %q", string(text))
}

var templateFuncs = template.FuncMap{
	"json": func(value any) (string, error) {
		data, err := json.Marshal(value)
		return string(data), err
	},
	"file": func(name string) (string, error) {
		bytes, err := os.ReadFile(name)
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(bytes), "\r\n"), nil
	},
	"env": func(name string) string {
		return os.Getenv(name)
	},
}

// LoadFromFile loads configuration from json file.
//
// File is rendered as text/template with functions json, file and env
// before decoding.
func LoadFromFile(file string) (Config, error) {
	tmpl, err := template.New(filepath.Base(file)).
		Funcs(templateFuncs).
		Option("missingkey=error").
		ParseFiles(file)
	if err != nil {
		return Config{}, err
	}
	var buffer bytes.Buffer
	if err := tmpl.Execute(&buffer, nil); err != nil {
		return Config{}, err
	}
	cfg := Config{LogLevel: LogLevel(log.INFO)}
	if err := json.Unmarshal(buffer.Bytes(), &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
