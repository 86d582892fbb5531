package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/cloudpayments-tap/extractor/pkg/extractor"
	"github.com/cloudpayments-tap/extractor/pkg/utils"
)

// errNothingToRemove is returned by remove for stores that do not outlive the process.
var errNothingToRemove = errors.New("nothing to remove: the memory state store does not persist bookmarks")

func remove(c *cli.Context) error {
	ctx := context.Background()
	sugar, err := utils.NewSugaredLogger(c.Bool("verbose"))
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	kind := c.String("state-store")
	if err := validateStateStore(kind); err != nil {
		return err
	}
	if kind == storeMemory {
		return errNothingToRemove
	}
	chCfg, err := buildClickHouseConfig(c)
	if err != nil {
		return fmt.Errorf("failed to build ClickHouse config: %w", err)
	}

	store, closeStore, err := openStore(ctx, kind, chCfg, c.String("bookmark-table-name"), sugar)
	if err != nil {
		return err
	}
	defer closeStore()

	stream := extractor.PaymentsStream.Name
	if err := store.DeleteBookmarks(ctx, stream); err != nil {
		return fmt.Errorf("failed to delete bookmarks: %w", err)
	}

	sugar.Infof("bookmarks successfully removed for stream %s", stream)
	return nil
}
