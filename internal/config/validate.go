package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks the run.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is one validation finding. Path names the flag.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Accepted values of the enumerated settings.
var (
	Drivers         = []string{"postgres", "pq", "sqlite", "mssql", "mysql"}
	MetricsBackends = []string{"none", "pushgateway", "datadog"}
	LogLevels       = []string{"debug", "info", "warn", "warning", "error"}
)

// Validate checks c without mutating it.
func Validate(c Config) []Issue {
	var issues []Issue
	errf := func(path, format string, args ...any) {
		issues = append(issues, Issue{SeverityError, path, fmt.Sprintf(format, args...)})
	}
	warnf := func(path, format string, args ...any) {
		issues = append(issues, Issue{SeverityWarning, path, fmt.Sprintf(format, args...)})
	}

	if !slices.Contains(Drivers, c.DBDriver) {
		errf("db_driver", "unknown driver %q; want one of %s", c.DBDriver, strings.Join(Drivers, ", "))
	}
	if c.ConnString() == "" {
		errf("dsn", "a DSN is required for driver %q", c.DBDriver)
	}

	if len(c.Inputs) == 0 {
		errf("inputs", "no input archives given")
	}
	seen := make(map[string]bool, len(c.Inputs))
	for _, in := range c.Inputs {
		if seen[in] {
			warnf("inputs", "%s listed more than once; its records are loaded twice", in)
		}
		seen[in] = true
	}

	if c.BatchSize <= 0 {
		errf("batch_size", "must be > 0, got %d", c.BatchSize)
	}

	if !slices.Contains(LogLevels, strings.ToLower(strings.TrimSpace(c.LogLevel))) {
		errf("log_level", "unknown level %q; want one of %s", c.LogLevel, strings.Join(LogLevels, ", "))
	}

	switch c.MetricsBackend {
	case "none", "":
	case "pushgateway":
		if u, err := url.Parse(c.PushgatewayURL); err != nil || u.Scheme == "" || u.Host == "" {
			errf("pushgateway_url", "not an absolute URL: %q", c.PushgatewayURL)
		}
	case "datadog":
		if c.StatsdAddr == "" {
			errf("statsd_addr", "required for the datadog backend")
		}
	default:
		errf("metrics_backend", "unknown backend %q; want one of %s", c.MetricsBackend, strings.Join(MetricsBackends, ", "))
	}
	return issues
}

// Err joins the error-severity issues, or returns nil when there are none.
func Err(issues []Issue) error {
	var errs []error
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			errs = append(errs, iss)
		}
	}
	return errors.Join(errs...)
}
