package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/cloudpayments-tap/extractor/pkg/clickhouse"
	"github.com/cloudpayments-tap/extractor/pkg/extractor"
	"github.com/cloudpayments-tap/extractor/pkg/utils"
)

// Config holds all configuration for the run command
type Config struct {
	// Application settings
	Verbose bool

	// API settings
	PublicID           string
	APISecret          string
	BaseURL            string
	RequestTimeout     time.Duration
	MaxAttempts        int
	RetryWait          time.Duration
	ExtraRetryStatuses []int
	RequestsPerSecond  float64

	// Stream settings
	StartDate   time.Time
	TimeZone    string
	Location    *time.Location
	HasMorePath string
	StateFile   string

	// Bookmark settings
	StateStore         string
	BookmarkTableName  string
	CheckpointInterval time.Duration
	ClickHouse         clickhouse.Config

	// Metrics settings
	MetricsHost   string
	MetricsPort   int
	Environment   string
	Region        string
	CloudProvider string
}

// MetricsAddr returns the formatted metrics address
func (c *Config) MetricsAddr() string {
	return fmt.Sprintf("%s:%d", c.MetricsHost, c.MetricsPort)
}

// Stream returns the payments stream with the configured has-more path.
func (c *Config) Stream() extractor.StreamConfig {
	s := extractor.PaymentsStream
	s.HasMorePath = c.HasMorePath
	return s
}

// Validate rejects configurations a run cannot start with. now is the run's sampled clock.
func (c *Config) Validate(now time.Time) error {
	var errs []error
	if strings.TrimSpace(c.PublicID) == "" {
		errs = append(errs, errors.New("public id is required"))
	}
	if strings.TrimSpace(c.APISecret) == "" {
		errs = append(errs, errors.New("api secret is required"))
	}
	if c.StartDate.IsZero() {
		errs = append(errs, errors.New("start date is required"))
	} else if c.StartDate.After(now) {
		errs = append(errs, fmt.Errorf("start date %s is in the future", c.StartDate.Format(time.RFC3339)))
	}
	if c.Location == nil {
		errs = append(errs, fmt.Errorf("time zone %q is not resolved", c.TimeZone))
	} else if _, err := utils.APIZoneCode(c.TimeZone); err != nil {
		errs = append(errs, err)
	}
	if c.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts))
	}
	if c.RetryWait < 0 {
		errs = append(errs, fmt.Errorf("retry wait must not be negative, got %s", c.RetryWait))
	}
	if c.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("requests per second must not be negative, got %v", c.RequestsPerSecond))
	}
	for _, code := range c.ExtraRetryStatuses {
		if code < 100 || code > 599 {
			errs = append(errs, fmt.Errorf("extra retry status %d is not an HTTP status code", code))
		}
	}
	if c.CheckpointInterval < 0 {
		errs = append(errs, fmt.Errorf("checkpoint interval must not be negative, got %s", c.CheckpointInterval))
	}
	if err := validateStateStore(c.StateStore); err != nil {
		errs = append(errs, err)
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		errs = append(errs, fmt.Errorf("metrics port %d out of range", c.MetricsPort))
	}
	return errors.Join(errs...)
}

func validateStateStore(store string) error {
	switch store {
	case storeClickHouse, storeMemory:
		return nil
	default:
		return fmt.Errorf("unknown state store %q (want %s or %s)", store, storeClickHouse, storeMemory)
	}
}

// buildConfig builds a Config from CLI context flags
func buildConfig(c *cli.Context) (*Config, error) {
	zone := c.String("time-zone")
	loc, err := utils.ResolveLocation(zone)
	if err != nil {
		return nil, err
	}
	// requests carry the API code; a name without one is left for Validate to reject
	if code, err := utils.APIZoneCode(zone); err == nil {
		zone = code
	}
	startDate, err := parseDate(c.String("start-date"), loc)
	if err != nil {
		return nil, fmt.Errorf("invalid start date: %w", err)
	}
	chCfg, err := buildClickHouseConfig(c)
	if err != nil {
		return nil, fmt.Errorf("failed to build ClickHouse config: %w", err)
	}

	return &Config{
		Verbose:            c.Bool("verbose"),
		PublicID:           c.String("public-id"),
		APISecret:          c.String("api-secret"),
		BaseURL:            c.String("base-url"),
		RequestTimeout:     c.Duration("request-timeout"),
		MaxAttempts:        c.Int("max-attempts"),
		RetryWait:          c.Duration("retry-wait"),
		ExtraRetryStatuses: c.IntSlice("extra-retry-statuses"),
		RequestsPerSecond:  c.Float64("requests-per-second"),
		StartDate:          startDate,
		TimeZone:           zone,
		Location:           loc,
		HasMorePath:        c.String("has-more-path"),
		StateFile:          c.String("state"),
		StateStore:         c.String("state-store"),
		BookmarkTableName:  c.String("bookmark-table-name"),
		CheckpointInterval: c.Duration("checkpoint-interval"),
		ClickHouse:         chCfg,
		MetricsHost:        c.String("metrics-host"),
		MetricsPort:        c.Int("metrics-port"),
		Environment:        c.String("environment"),
		Region:             c.String("region"),
		CloudProvider:      c.String("cloud-provider"),
	}, nil
}

// buildClickHouseConfig loads the ClickHouse config from the environment and applies the
// flags that were set explicitly.
func buildClickHouseConfig(c *cli.Context) (clickhouse.Config, error) {
	cfg, err := clickhouse.Load()
	if err != nil {
		return clickhouse.Config{}, err
	}
	if c.IsSet("clickhouse-hosts") {
		// StringSliceFlag returns []string, but a single comma-separated value is accepted too
		hosts := c.StringSlice("clickhouse-hosts")
		if len(hosts) == 1 && strings.Contains(hosts[0], ",") {
			hosts = strings.Split(hosts[0], ",")
		}
		for i, host := range hosts {
			hosts[i] = strings.TrimSpace(host)
		}
		cfg.Hosts = hosts
	}
	if c.IsSet("clickhouse-cluster") {
		cfg.Cluster = c.String("clickhouse-cluster")
	}
	if c.IsSet("clickhouse-database") {
		cfg.Database = c.String("clickhouse-database")
	}
	if c.IsSet("clickhouse-username") {
		cfg.Username = c.String("clickhouse-username")
	}
	if c.IsSet("clickhouse-password") {
		cfg.Password = c.String("clickhouse-password")
	}
	return cfg, nil
}

// parseDate parses a configured date with utils.ParseTimestamp and returns it in loc.
func parseDate(value string, loc *time.Location) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, errors.New("empty date")
	}
	t, err := utils.ParseTimestamp(value, loc)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(loc), nil
}
