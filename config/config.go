package config

import (
	"flag"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap/zapcore"

	"github.com/searchktools/tiny-server/core/http"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "TINY_"

// Config holds all application configuration.
type Config struct {
	Host     string        `env:"HOST"`
	Port     int           `env:"PORT" envDefault:"8080"`
	Env      string        `env:"ENV" envDefault:"development"`
	LogLevel zapcore.Level `env:"LOG_LEVEL" envDefault:"info"`

	// ReadTimeout bounds reading one request once its first byte arrived.
	ReadTimeout time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	// WriteTimeout bounds writing one response.
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	// IdleTimeout bounds the wait for the next request on a kept-alive
	// connection.
	IdleTimeout time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`

	// KeepAlivePeriod is the TCP keep-alive interval of accepted connections.
	// Zero uses the system default and a negative value turns it off.
	KeepAlivePeriod time.Duration `env:"KEEPALIVE_PERIOD" envDefault:"15s"`

	MaxConnections int   `env:"MAX_CONNECTIONS" envDefault:"10000"`
	MaxHeaderBytes int   `env:"MAX_HEADER_BYTES" envDefault:"65536"`
	MaxBodyBytes   int64 `env:"MAX_BODY_BYTES" envDefault:"10485760"`

	// LegacyDecodeClose closes the connection without a response for decode
	// failures other than 405 and 500.
	LegacyDecodeClose bool `env:"LEGACY_DECODE_CLOSE"`
}

// Load reads the TINY_* environment variables, then applies command-line
// flags from args on top of them.
func Load(args []string) (*Config, error) {
	return load(args, nil)
}

func load(args []string, environ map[string]string) (*Config, error) {
	cfg := &Config{}
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, errors.Wrap(err, "failed to parse environment")
	}

	fs := flag.NewFlagSet("tiny-server", flag.ContinueOnError)
	fs.StringVar(&cfg.Host, "host", cfg.Host, "HTTP server host")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	fs.StringVar(&cfg.Env, "env", cfg.Env, "Environment (development/production)")
	fs.TextVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug/info/warn/error)")
	fs.DurationVar(&cfg.ReadTimeout, "read-timeout", cfg.ReadTimeout, "HTTP read timeout")
	fs.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "HTTP write timeout")
	fs.DurationVar(&cfg.IdleTimeout, "idle-timeout", cfg.IdleTimeout, "Keep-alive idle timeout")
	fs.DurationVar(&cfg.KeepAlivePeriod, "keepalive-period", cfg.KeepAlivePeriod, "TCP keep-alive period (0 = system default, negative = off)")
	fs.IntVar(&cfg.MaxConnections, "max-connections", cfg.MaxConnections, "Maximum concurrent connections (0 = unlimited)")
	fs.IntVar(&cfg.MaxHeaderBytes, "max-header-bytes", cfg.MaxHeaderBytes, "Maximum request header size")
	fs.Int64Var(&cfg.MaxBodyBytes, "max-body-bytes", cfg.MaxBodyBytes, "Maximum request body size")
	fs.BoolVar(&cfg.LegacyDecodeClose, "legacy-decode-close", cfg.LegacyDecodeClose, "Close silently on most decode errors")

	if err := fs.Parse(args); err != nil {
		return nil, errors.Wrap(err, "failed to parse flags")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// New loads configuration from the process environment and os.Args and exits
// on failure.
func New() *Config {
	cfg, err := Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}
	return cfg
}

// Default returns the built-in defaults, ignoring the environment.
func Default() *Config {
	cfg, err := load(nil, map[string]string{})
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate checks that the values are usable.
func (c *Config) Validate() error {
	switch {
	case c.Port < 0 || c.Port > 65535:
		return errors.Newf("port %d out of range", c.Port)
	case c.ReadTimeout < 0, c.WriteTimeout < 0, c.IdleTimeout < 0:
		return errors.New("timeouts must not be negative")
	case c.MaxConnections < 0:
		return errors.Newf("max connections %d must not be negative", c.MaxConnections)
	case c.MaxHeaderBytes < 0 || c.MaxBodyBytes < 0:
		return errors.New("size limits must not be negative")
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Limits returns the decode limits.
func (c *Config) Limits() http.Limits {
	return http.Limits{
		MaxHeaderBytes: c.MaxHeaderBytes,
		MaxBodyBytes:   c.MaxBodyBytes,
	}
}
