// Package config resolves CLI settings from flags, the environment and
// optional .env files.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/mynotes/docsync/pkg/sidebar"
)

const (
	StoreFile   = "file"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

const (
	DefaultAPIURL      = "http://127.0.0.1:8080/api"
	DefaultStateDir    = ".docsync"
	DefaultPushRetries = 3
	DefaultHTTPTimeout = 30 * time.Second
	DefaultBridgeAddr  = "127.0.0.1:8090"
	DefaultLogLevel    = "info"
)

// DefaultEnvFiles are read in order; earlier files win.
var DefaultEnvFiles = []string{".env.local", ".env"}

type Config struct {
	APIURL        string
	StateDir      string
	LocalStore    string
	RedisAddr     string
	RedisPassword string
	SidebarMode   sidebar.Mode
	PushRetries   uint64
	HTTPTimeout   time.Duration
	LogLevel      string
	LogFormat     string
	LogFile       string
	BridgeAddr    string
}

// Loader carries the inputs Parse reads besides the arguments.
type Loader struct {
	// Lookup reads one environment variable. Defaults to os.LookupEnv.
	Lookup func(key string) (string, bool)
	// Files are .env files merged under the environment. Missing files are skipped.
	Files []string
	// Output receives flag usage and errors. Defaults to os.Stderr.
	Output io.Writer
}

// Parse reads the process environment and DefaultEnvFiles, then args.
// It returns the arguments left after the flags.
func Parse(args []string) (*Config, []string, error) {
	return Loader{Files: DefaultEnvFiles}.Parse(args)
}

// Parse resolves each setting with flags over environment over .env files
// over defaults.
func (l Loader) Parse(args []string) (*Config, []string, error) {
	env, err := l.env()
	if err != nil {
		return nil, nil, err
	}

	retries, err := env.uint("DOCSYNC_PREF_PUSH_RETRIES", DefaultPushRetries)
	if err != nil {
		return nil, nil, err
	}
	timeout, err := env.duration("DOCSYNC_HTTP_TIMEOUT", DefaultHTTPTimeout)
	if err != nil {
		return nil, nil, err
	}

	flagSet := flag.NewFlagSet("docsync", flag.ContinueOnError)
	if l.Output != nil {
		flagSet.SetOutput(l.Output)
	}
	var (
		apiURL      = flagSet.String("api-url", env.str("DOCSYNC_API_URL", DefaultAPIURL), "Backend API base URL")
		stateDir    = flagSet.String("state-dir", env.str("DOCSYNC_STATE_DIR", DefaultStateDir), "Directory of the file-backed local store")
		store       = flagSet.String("store", env.str("DOCSYNC_LOCAL_STORE", StoreFile), "Local store: file, memory or redis")
		redisAddr   = flagSet.String("redis-addr", env.str("DOCSYNC_REDIS_ADDR", ""), "Redis address for the redis local store")
		redisPass   = flagSet.String("redis-password", env.str("DOCSYNC_REDIS_PASSWORD", ""), "Redis password")
		mode        = flagSet.String("sidebar-mode", env.str("DOCSYNC_SIDEBAR_MODE", string(sidebar.ModeSynchronized)), "Sidebar mode: synchronized or legacy")
		pushRetries = flagSet.Uint64("push-retries", retries, "Retries of a failed preference push")
		httpTimeout = flagSet.Duration("http-timeout", timeout, "Timeout of one backend request")
		logLevel    = flagSet.String("log-level", env.str("DOCSYNC_LOG_LEVEL", DefaultLogLevel), "Log level")
		logFormat   = flagSet.String("log-format", env.str("DOCSYNC_LOG_FORMAT", LogFormatJSON), "Log format: json or text")
		logFile     = flagSet.String("log-file", env.str("DOCSYNC_LOG_FILE", ""), "Append logs to this file instead of stderr")
		bridgeAddr  = flagSet.String("bridge-addr", env.str("DOCSYNC_BRIDGE_ADDR", DefaultBridgeAddr), "Listen address of the serve command")
	)
	if err := flagSet.Parse(args); err != nil {
		return nil, nil, err
	}

	sidebarMode, err := sidebar.ParseMode(*mode)
	if err != nil {
		return nil, nil, err
	}
	cfg := &Config{
		APIURL:        *apiURL,
		StateDir:      *stateDir,
		LocalStore:    *store,
		RedisAddr:     *redisAddr,
		RedisPassword: *redisPass,
		SidebarMode:   sidebarMode,
		PushRetries:   *pushRetries,
		HTTPTimeout:   *httpTimeout,
		LogLevel:      *logLevel,
		LogFormat:     *logFormat,
		LogFile:       *logFile,
		BridgeAddr:    *bridgeAddr,
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, flagSet.Args(), nil
}

func (c *Config) Validate() error {
	if c.APIURL == "" {
		return errors.New("api url is required")
	}
	switch c.LocalStore {
	case StoreFile:
		if c.StateDir == "" {
			return errors.New("state dir is required for the file store")
		}
	case StoreMemory:
	case StoreRedis:
		if c.RedisAddr == "" {
			return errors.New("redis address is required for the redis store")
		}
	default:
		return fmt.Errorf("invalid local store: %s (must be file, memory or redis)", c.LocalStore)
	}
	if c.LogFormat != LogFormatJSON && c.LogFormat != LogFormatText {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.LogFormat)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("invalid http timeout: %s", c.HTTPTimeout)
	}
	return nil
}

type environment struct {
	lookup func(string) (string, bool)
	files  map[string]string
}

func (l Loader) env() (*environment, error) {
	e := &environment{lookup: l.Lookup, files: map[string]string{}}
	if e.lookup == nil {
		e.lookup = os.LookupEnv
	}
	for _, name := range l.Files {
		vals, err := godotenv.Read(name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		for k, v := range vals {
			if _, ok := e.files[k]; !ok {
				e.files[k] = v
			}
		}
	}
	return e, nil
}

func (e *environment) str(key, def string) string {
	if v, ok := e.lookup(key); ok && v != "" {
		return v
	}
	if v, ok := e.files[key]; ok && v != "" {
		return v
	}
	return def
}

func (e *environment) uint(key string, def uint64) (uint64, error) {
	v := e.str(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func (e *environment) duration(key string, def time.Duration) (time.Duration, error) {
	v := e.str(key, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
