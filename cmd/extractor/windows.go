package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/cloudpayments-tap/extractor/pkg/cloudpayments"
	"github.com/cloudpayments-tap/extractor/pkg/daterange"
	"github.com/cloudpayments-tap/extractor/pkg/pagination"
	"github.com/cloudpayments-tap/extractor/pkg/utils"
)

// windows prints the day windows a run would walk and the bounds of their first request,
// without contacting the API.
func windows(c *cli.Context) error {
	zone := c.String("time-zone")
	loc, err := utils.ResolveLocation(zone)
	if err != nil {
		return err
	}
	start, err := parseDate(c.String("start-date"), loc)
	if err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}

	var resume time.Time
	if v := c.String("bookmark"); v != "" {
		if resume, err = parseDate(v, loc); err != nil {
			return fmt.Errorf("invalid bookmark: %w", err)
		}
	}
	now := time.Now()
	if v := c.String("now"); v != "" {
		if now, err = parseDate(v, loc); err != nil {
			return fmt.Errorf("invalid now: %w", err)
		}
	}

	origin, firstRun := daterange.Origin(resume, start)
	fmt.Fprintf(c.App.Writer, "# origin %s first_run=%t\n", origin.In(loc).Format(time.RFC3339), firstRun)

	n := 0
	for w := range daterange.Generate(resume, start, loc, now) {
		req := cloudpayments.NewListRequest(w, pagination.PageState{PageNumber: 1}, zone)
		fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\n", w, req.CreatedDateGte, req.CreatedDateLte)
		n++
	}
	fmt.Fprintf(c.App.Writer, "# %d windows\n", n)
	return nil
}
