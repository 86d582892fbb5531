package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "extractor",
		Usage: "Incrementally extract CloudPayments payments as JSON lines",
		Flags: appFlags(),
		Before: func(c *cli.Context) error {
			path := c.String("env-file")
			if path == "" {
				return nil
			}
			if err := godotenv.Load(path); err != nil {
				return fmt.Errorf("failed to load env file: %w", err)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Extract payments created since the last bookmark",
				Flags:  runFlags(),
				Action: run,
			},
			{
				Name:   "remove",
				Usage:  "Remove the persisted bookmarks so the next run starts from the start date",
				Flags:  removeFlags(),
				Action: remove,
			},
			{
				Name:   "windows",
				Usage:  "Print the day windows a run would request",
				Flags:  windowsFlags(),
				Action: windows,
			},
		},
	}
}
