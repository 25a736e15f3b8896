// Package config centralizes loader configuration. Every tunable is a
// command-line flag whose default is seeded from the environment, which in
// turn falls back to an optional YAML file and then to built-in defaults.
// Precedence, highest first: flag, environment, file, default.
//
// Tests should use LoadFromArgs to stay hermetic:
//
//	fs := flag.NewFlagSet("test", flag.ContinueOnError)
//	getenv := func(k string) string { return testEnv[k] }
//	cfg, err := config.LoadFromArgs(fs, getenv, []string{"-batch_size=10", "a.zip"})
package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
)

// Config is the fully resolved process configuration.
type Config struct {
	// ConfigFile is the YAML file that seeded defaults, if any.
	ConfigFile string

	DBDriver   string // postgres | pq | sqlite | mssql | mysql
	DSN        string // full DSN; built from the parts below for postgres/pq when empty
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string

	Inputs    []string // -inputs entries followed by positional arguments
	BatchSize int

	LogLevel string

	MetricsBackend string // none | pushgateway | datadog
	PushgatewayURL string
	StatsdAddr     string

	// DryRun loads everything and then rolls back.
	DryRun bool
}

// File is the YAML shape of a configuration file. Empty values leave the
// built-in default in place.
type File struct {
	DB struct {
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Host     string `yaml:"host"`
		Port     string `yaml:"port"`
		Name     string `yaml:"name"`
	} `yaml:"db"`
	Inputs    []string `yaml:"inputs"`
	BatchSize int      `yaml:"batch_size"`
	LogLevel  string   `yaml:"log_level"`
	Metrics   struct {
		Backend        string `yaml:"backend"`
		PushgatewayURL string `yaml:"pushgateway_url"`
		StatsdAddr     string `yaml:"statsd_addr"`
	} `yaml:"metrics"`
	DryRun *bool `yaml:"dry_run"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		DBDriver:       "postgres",
		DBUser:         "postgres",
		DBPassword:     "postgres",
		DBHost:         "localhost",
		DBPort:         "5432",
		DBName:         "postgres",
		BatchSize:      1000,
		LogLevel:       "info",
		MetricsBackend: "none",
		PushgatewayURL: "http://localhost:9091",
		StatsdAddr:     "127.0.0.1:8125",
	}
}

// ReadFile decodes a YAML configuration file. Unknown keys are rejected so
// typos surface instead of silently falling back to defaults.
func ReadFile(path string) (File, error) {
	var f File
	raw, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("config: read %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return f, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return f, nil
}

// merge overlays the non-empty values of f onto c.
func (c Config) merge(f File) Config {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.DBDriver, f.DB.Driver)
	set(&c.DSN, f.DB.DSN)
	set(&c.DBUser, f.DB.User)
	set(&c.DBPassword, f.DB.Password)
	set(&c.DBHost, f.DB.Host)
	set(&c.DBPort, f.DB.Port)
	set(&c.DBName, f.DB.Name)
	set(&c.LogLevel, f.LogLevel)
	set(&c.MetricsBackend, f.Metrics.Backend)
	set(&c.PushgatewayURL, f.Metrics.PushgatewayURL)
	set(&c.StatsdAddr, f.Metrics.StatsdAddr)
	if len(f.Inputs) > 0 {
		c.Inputs = append([]string(nil), f.Inputs...)
	}
	if f.BatchSize != 0 {
		c.BatchSize = f.BatchSize
	}
	if f.DryRun != nil {
		c.DryRun = *f.DryRun
	}
	return c
}

// LoadFromArgs defines every flag on fs, seeds flag defaults from getenv
// (falling back to the YAML file named by -config or LOADER_CONFIG), then
// parses args. Positional arguments are appended to Inputs.
func LoadFromArgs(fs *flag.FlagSet, getenv func(string) string, args []string) (*Config, error) {
	base := Defaults()
	path := configPath(getenv, args)
	if path != "" {
		f, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		base = base.merge(f)
	}
	base.ConfigFile = path

	envOr := func(k, d string) string {
		if v := getenv(k); v != "" {
			return v
		}
		return d
	}
	intEnvOr := func(k string, d int) int {
		if v := getenv(k); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				return i
			}
		}
		return d
	}
	boolEnvOr := func(k string, d bool) bool {
		switch strings.ToLower(getenv(k)) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
		return d
	}

	cfg := &Config{ConfigFile: base.ConfigFile}
	var inputs string

	fs.StringVar(&cfg.ConfigFile, "config", base.ConfigFile, "YAML file seeding defaults (env LOADER_CONFIG)")

	fs.StringVar(&cfg.DBDriver, "db_driver", envOr("DB_DRIVER", base.DBDriver), "Database driver: postgres, pq, sqlite, mssql or mysql")
	fs.StringVar(&cfg.DSN, "dsn", envOr("DB_DSN", base.DSN), "Full DSN; built from -db_* parts for postgres when empty")
	fs.StringVar(&cfg.DBUser, "db_user", envOr("DB_USER", base.DBUser), "DB user")
	fs.StringVar(&cfg.DBPassword, "db_password", envOr("DB_PASSWORD", base.DBPassword), "DB password")
	fs.StringVar(&cfg.DBHost, "db_host", envOr("DB_HOST", base.DBHost), "DB host")
	fs.StringVar(&cfg.DBPort, "db_port", envOr("DB_PORT", base.DBPort), "DB port")
	fs.StringVar(&cfg.DBName, "db_name", envOr("DB_NAME", base.DBName), "DB name")

	fs.StringVar(&inputs, "inputs", envOr("INPUTS", strings.Join(base.Inputs, ",")), "Comma-separated input archives; positional args are appended")
	fs.IntVar(&cfg.BatchSize, "batch_size", intEnvOr("BATCH_SIZE", base.BatchSize), "Records per batch")

	fs.StringVar(&cfg.LogLevel, "log_level", envOr("LOG_LEVEL", base.LogLevel), "Log level: debug, info, warn or error")

	fs.StringVar(&cfg.MetricsBackend, "metrics_backend", envOr("METRICS_BACKEND", base.MetricsBackend), "Metrics backend: none, pushgateway or datadog")
	fs.StringVar(&cfg.PushgatewayURL, "pushgateway_url", envOr("PUSHGATEWAY_URL", base.PushgatewayURL), "Prometheus Pushgateway URL")
	fs.StringVar(&cfg.StatsdAddr, "statsd_addr", envOr("STATSD_ADDR", base.StatsdAddr), "DogStatsD address")

	fs.BoolVar(&cfg.DryRun, "dry_run", boolEnvOr("DRY_RUN", base.DryRun), "Load everything, then roll back")

	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	cfg.Inputs = splitList(inputs)
	cfg.Inputs = append(cfg.Inputs, fs.Args()...)
	return cfg, nil
}

// Load is the production entry point over flag.CommandLine, os.Getenv and
// os.Args.
func Load() (*Config, error) {
	return LoadFromArgs(flag.CommandLine, os.Getenv, os.Args[1:])
}

// configPath finds -config in args ahead of flag parsing, since the file has
// to seed the defaults the flags are defined with.
func configPath(getenv func(string) string, args []string) string {
	for i, a := range args {
		if a == "--" {
			break
		}
		name, val, hasVal := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if !strings.HasPrefix(a, "-") || name != "config" {
			continue
		}
		if hasVal {
			return val
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return getenv("LOADER_CONFIG")
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ConnString returns the DSN to open. For postgres and pq an empty DSN is
// assembled from the discrete parts.
func (c *Config) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	switch c.DBDriver {
	case "postgres", "pq":
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.DBUser, c.DBPassword),
			Host:     net.JoinHostPort(c.DBHost, c.DBPort),
			Path:     "/" + c.DBName,
			RawQuery: url.Values{"sslmode": {"disable"}, "application_name": {"tweetloader"}}.Encode(),
		}
		return u.String()
	}
	return ""
}

// Redacted is ConnString with any password masked, for logging.
func (c *Config) Redacted() string {
	dsn := c.ConnString()
	if c.DBDriver == "mysql" {
		mc, err := mysql.ParseDSN(dsn)
		if err != nil {
			return dsn
		}
		if mc.Passwd != "" {
			mc.Passwd = "xxxxx"
		}
		return mc.FormatDSN()
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return dsn
	}
	return u.Redacted()
}
