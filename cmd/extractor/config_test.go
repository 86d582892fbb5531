package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/cloudpayments-tap/extractor/pkg/retry"
)

func validConfig() *Config {
	return &Config{
		PublicID:    "pk_test",
		APISecret:   "secret",
		StartDate:   time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		TimeZone:    "UTC",
		Location:    time.UTC,
		MaxAttempts: retry.DefaultMaxAttempts,
		RetryWait:   retry.DefaultWait,
		StateStore:  storeMemory,
		MetricsPort: 9090,
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing public id", mutate: func(c *Config) { c.PublicID = " " }, wantErr: "public id is required"},
		{name: "missing secret", mutate: func(c *Config) { c.APISecret = "" }, wantErr: "api secret is required"},
		{name: "missing start date", mutate: func(c *Config) { c.StartDate = time.Time{} }, wantErr: "start date is required"},
		{name: "future start date", mutate: func(c *Config) { c.StartDate = now.Add(time.Hour) }, wantErr: "in the future"},
		{name: "unresolved time zone", mutate: func(c *Config) { c.Location = nil }, wantErr: "time zone"},
		{name: "zone without api code", mutate: func(c *Config) { c.TimeZone = "Asia/Tokyo" }, wantErr: `time zone "Asia/Tokyo" has no CloudPayments code`},
		{name: "zero attempts", mutate: func(c *Config) { c.MaxAttempts = 0 }, wantErr: "max attempts"},
		{name: "negative wait", mutate: func(c *Config) { c.RetryWait = -time.Second }, wantErr: "retry wait"},
		{name: "negative rps", mutate: func(c *Config) { c.RequestsPerSecond = -1 }, wantErr: "requests per second"},
		{name: "bad retry status", mutate: func(c *Config) { c.ExtraRetryStatuses = []int{429, 42} }, wantErr: "extra retry status 42"},
		{name: "negative checkpoint interval", mutate: func(c *Config) { c.CheckpointInterval = -1 }, wantErr: "checkpoint interval"},
		{name: "unknown store", mutate: func(c *Config) { c.StateStore = "redis" }, wantErr: `unknown state store "redis"`},
		{name: "metrics port", mutate: func(c *Config) { c.MetricsPort = 70000 }, wantErr: "metrics port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate(now)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestConfig_ValidateJoinsErrors(t *testing.T) {
	t.Parallel()
	err := (&Config{StateStore: storeMemory, MaxAttempts: 1, Location: time.UTC}).Validate(time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "public id is required")
	assert.Contains(t, err.Error(), "api secret is required")
	assert.Contains(t, err.Error(), "start date is required")
}

func TestParseDate(t *testing.T) {
	t.Parallel()
	msk, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	tests := []struct {
		name  string
		value string
		want  time.Time
	}{
		{name: "date only", value: "2023-01-15", want: time.Date(2023, 1, 15, 0, 0, 0, 0, msk)},
		{name: "api timestamp", value: "2023-01-15T10:30:00", want: time.Date(2023, 1, 15, 10, 30, 0, 0, msk)},
		{name: "rfc3339", value: "2023-01-15T07:30:00Z", want: time.Date(2023, 1, 15, 10, 30, 0, 0, msk)},
		{name: "whitespace", value: " 2023-01-15 ", want: time.Date(2023, 1, 15, 0, 0, 0, 0, msk)},
		{name: "fractional seconds", value: "2023-01-15T10:30:00.250", want: time.Date(2023, 1, 15, 10, 30, 0, 250_000_000, msk)},
		{name: "rfc3339 nano with offset", value: "2023-01-15T09:30:00.5+02:00", want: time.Date(2023, 1, 15, 10, 30, 0, 500_000_000, msk)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseDate(tt.value, msk)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
			assert.Equal(t, msk, got.Location())
		})
	}

	_, err = parseDate("", msk)
	require.Error(t, err)
	_, err = parseDate("15.01.2023", msk)
	require.ErrorContains(t, err, "invalid timestamp")
}

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	var cfg *Config
	app := &cli.App{
		Name: "test",
		Commands: []*cli.Command{{
			Name:  "run",
			Flags: runFlags(),
			Action: func(c *cli.Context) error {
				var err error
				cfg, err = buildConfig(c)
				return err
			},
		}},
	}
	err := app.Run([]string{"test", "run",
		"--public-id", "pk_1",
		"--api-secret", "s3cret",
		"--start-date", "2023-01-01",
		"--time-zone", "MSK",
		"--extra-retry-statuses", "429",
		"--extra-retry-statuses", "409",
		"--requests-per-second", "2.5",
		"--state-store", storeMemory,
		"--clickhouse-hosts", "ch1:9000, ch2:9000",
		"--clickhouse-database", "taps",
		"--metrics-port", "0",
	})
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "pk_1", cfg.PublicID)
	assert.Equal(t, "s3cret", cfg.APISecret)
	assert.Equal(t, "MSK", cfg.TimeZone)
	assert.Equal(t, "Europe/Moscow", cfg.Location.String())
	assert.Equal(t, time.Date(2022, 12, 31, 21, 0, 0, 0, time.UTC), cfg.StartDate.UTC())
	assert.Equal(t, []int{429, 409}, cfg.ExtraRetryStatuses)
	assert.InDelta(t, 2.5, cfg.RequestsPerSecond, 1e-9)
	assert.Equal(t, retry.DefaultMaxAttempts, cfg.MaxAttempts)
	assert.Equal(t, retry.DefaultWait, cfg.RetryWait)
	assert.Equal(t, "HasMore", cfg.HasMorePath)
	assert.Equal(t, "bookmarks", cfg.BookmarkTableName)
	assert.Equal(t, []string{"ch1:9000", "ch2:9000"}, cfg.ClickHouse.Hosts)
	assert.Equal(t, "taps", cfg.ClickHouse.Database)
	assert.Equal(t, ":0", cfg.MetricsAddr())
	assert.Equal(t, "HasMore", cfg.Stream().HasMorePath)
	assert.Equal(t, "payments", cfg.Stream().Name)
}

func TestBuildConfig_TimeZoneSentAsAPICode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		zone     string
		wantCode string
		wantErr  string
	}{
		{name: "iana name is mapped", zone: "Europe/Moscow", wantCode: "MSK"},
		{name: "code is upper cased", zone: "msk", wantCode: "MSK"},
		{name: "iana name without code is rejected", zone: "Asia/Tokyo", wantCode: "Asia/Tokyo", wantErr: "has no CloudPayments code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var cfg *Config
			app := &cli.App{
				Name: "test",
				Commands: []*cli.Command{{
					Name:  "run",
					Flags: runFlags(),
					Action: func(c *cli.Context) error {
						var err error
						cfg, err = buildConfig(c)
						return err
					},
				}},
			}
			require.NoError(t, app.Run([]string{"test", "run",
				"--public-id", "pk", "--api-secret", "s", "--start-date", "2023-01-01",
				"--time-zone", tt.zone, "--state-store", storeMemory,
			}))
			require.NotNil(t, cfg)
			assert.Equal(t, tt.wantCode, cfg.TimeZone)

			err := cfg.Validate(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestBuildConfig_UnknownTimeZone(t *testing.T) {
	t.Parallel()
	app := &cli.App{
		Name: "test",
		Commands: []*cli.Command{{
			Name:  "run",
			Flags: runFlags(),
			Action: func(c *cli.Context) error {
				_, err := buildConfig(c)
				return err
			},
		}},
	}
	err := app.Run([]string{"test", "run",
		"--public-id", "pk", "--api-secret", "s", "--start-date", "2023-01-01", "--time-zone", "Mars/Olympus",
	})
	require.ErrorContains(t, err, "unknown time zone")
}
