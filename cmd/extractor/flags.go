package main

import (
	"github.com/urfave/cli/v2"

	"github.com/cloudpayments-tap/extractor/pkg/cloudpayments"
	"github.com/cloudpayments-tap/extractor/pkg/retry"
)

const (
	storeClickHouse = "clickhouse"
	storeMemory     = "memory"
)

// appFlags are shared by every command.
func appFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "env-file",
			Usage:   "Load environment variables from a .env file before parsing flags",
			EnvVars: []string{"ENV_FILE"},
		},
	}
}

func streamFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable verbose logging",
			EnvVars: []string{"VERBOSE"},
			Value:   false,
		},
		&cli.StringFlag{
			Name:     "start-date",
			Aliases:  []string{"s"},
			Usage:    "The date to start extracting payments from on a first run (RFC3339, 2006-01-02T15:04:05 or 2006-01-02)",
			EnvVars:  []string{"START_DATE"},
			Required: true,
		},
		&cli.StringFlag{
			Name:    "time-zone",
			Aliases: []string{"z"},
			Usage:   "The API time zone code (e.g. MSK) or IANA name that defines day boundaries",
			EnvVars: []string{"TIME_ZONE"},
			Value:   "UTC",
		},
		&cli.StringFlag{
			Name:    "has-more-path",
			Usage:   "JSON path of the boolean that signals further pages (empty to rely on empty pages only)",
			EnvVars: []string{"HAS_MORE_PATH"},
			Value:   "HasMore",
		},
	}
}

func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "state-store",
			Usage:   "Where bookmarks are persisted (clickhouse or memory)",
			EnvVars: []string{"STATE_STORE"},
			Value:   storeClickHouse,
		},
		&cli.StringFlag{
			Name:    "bookmark-table-name",
			Aliases: []string{"T"},
			Usage:   "The name of the table to write bookmarks to",
			EnvVars: []string{"BOOKMARK_TABLE_NAME"},
			Value:   "bookmarks",
		},
		&cli.StringSliceFlag{
			Name:    "clickhouse-hosts",
			Usage:   "ClickHouse server hosts (comma-separated)",
			EnvVars: []string{"CLICKHOUSE_HOSTS"},
		},
		&cli.StringFlag{
			Name:    "clickhouse-cluster",
			Usage:   "ClickHouse cluster name (empty for a single node)",
			EnvVars: []string{"CLICKHOUSE_CLUSTER"},
		},
		&cli.StringFlag{
			Name:    "clickhouse-database",
			Usage:   "ClickHouse database name",
			EnvVars: []string{"CLICKHOUSE_DATABASE"},
		},
		&cli.StringFlag{
			Name:    "clickhouse-username",
			Usage:   "ClickHouse username",
			EnvVars: []string{"CLICKHOUSE_USERNAME"},
		},
		&cli.StringFlag{
			Name:    "clickhouse-password",
			Usage:   "ClickHouse password",
			EnvVars: []string{"CLICKHOUSE_PASSWORD"},
		},
	}
}

// runFlags returns all CLI flags for the run command
func runFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     "public-id",
			Usage:    "The CloudPayments public ID",
			EnvVars:  []string{"CLOUDPAYMENTS_PUBLIC_ID"},
			Required: true,
		},
		&cli.StringFlag{
			Name:     "api-secret",
			Usage:    "The CloudPayments API secret",
			EnvVars:  []string{"CLOUDPAYMENTS_API_SECRET"},
			Required: true,
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "The CloudPayments API base URL",
			EnvVars: []string{"CLOUDPAYMENTS_BASE_URL"},
			Value:   cloudpayments.DefaultBaseURL,
		},
		&cli.DurationFlag{
			Name:    "request-timeout",
			Usage:   "The timeout of a single request attempt",
			EnvVars: []string{"REQUEST_TIMEOUT"},
			Value:   cloudpayments.DefaultTimeout,
		},
		&cli.IntFlag{
			Name:    "max-attempts",
			Usage:   "The maximum number of attempts per page, the first one included",
			EnvVars: []string{"MAX_ATTEMPTS"},
			Value:   retry.DefaultMaxAttempts,
		},
		&cli.DurationFlag{
			Name:    "retry-wait",
			Usage:   "The constant wait between attempts",
			EnvVars: []string{"RETRY_WAIT"},
			Value:   retry.DefaultWait,
		},
		&cli.IntSliceFlag{
			Name:    "extra-retry-statuses",
			Usage:   "Additional HTTP status codes treated as transient (e.g. 429)",
			EnvVars: []string{"EXTRA_RETRY_STATUSES"},
		},
		&cli.Float64Flag{
			Name:    "requests-per-second",
			Usage:   "Limit of request attempts per second (0 disables limiting)",
			EnvVars: []string{"REQUESTS_PER_SECOND"},
			Value:   0,
		},
		&cli.StringFlag{
			Name:    "state",
			Usage:   "Path of a state file holding a previously emitted STATE value to resume from",
			EnvVars: []string{"STATE_FILE"},
		},
		&cli.DurationFlag{
			Name:    "checkpoint-interval",
			Aliases: []string{"i"},
			Usage:   "The interval to write bookmarks to the store (0 writes after every page)",
			EnvVars: []string{"CHECKPOINT_INTERVAL"},
			Value:   0,
		},
		&cli.StringFlag{
			Name:    "metrics-host",
			Usage:   "Host for Prometheus metrics server (empty for all interfaces)",
			EnvVars: []string{"METRICS_HOST"},
			Value:   "",
		},
		&cli.IntFlag{
			Name:    "metrics-port",
			Aliases: []string{"m"},
			Usage:   "Port for Prometheus metrics server (0 disables the server)",
			EnvVars: []string{"METRICS_PORT"},
			Value:   9090,
		},
		&cli.StringFlag{
			Name:    "environment",
			Aliases: []string{"E"},
			Usage:   "Deployment environment for metrics labels (e.g., 'production', 'staging')",
			EnvVars: []string{"ENVIRONMENT"},
		},
		&cli.StringFlag{
			Name:    "region",
			Aliases: []string{"R"},
			Usage:   "Cloud region for metrics labels (e.g., 'eu-central-1')",
			EnvVars: []string{"REGION"},
		},
		&cli.StringFlag{
			Name:    "cloud-provider",
			Aliases: []string{"P"},
			Usage:   "Cloud provider for metrics labels (e.g., 'aws', 'gcp')",
			EnvVars: []string{"CLOUD_PROVIDER"},
		},
	}
	flags = append(flags, streamFlags()...)
	return append(flags, storeFlags()...)
}

func removeFlags() []cli.Flag {
	return append([]cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable verbose logging",
			EnvVars: []string{"VERBOSE"},
		},
	}, storeFlags()...)
}

func windowsFlags() []cli.Flag {
	return append(streamFlags(),
		&cli.StringFlag{
			Name:  "bookmark",
			Usage: "Resume point to plan from instead of the start date (same formats as --start-date)",
		},
		&cli.StringFlag{
			Name:  "now",
			Usage: "Upper bound of the last window (defaults to the current time)",
		},
	)
}
