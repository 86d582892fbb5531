package cloudpayments

import (
	"time"

	"github.com/cloudpayments-tap/extractor/pkg/daterange"
	"github.com/cloudpayments-tap/extractor/pkg/pagination"
	"github.com/cloudpayments-tap/extractor/pkg/utils"
)

// ListRequest is the JSON body of POST /payments/list.
type ListRequest struct {
	PageNumber     int    `json:"PageNumber"`
	CreatedDateGte string `json:"CreatedDateGte"`
	CreatedDateLte string `json:"CreatedDateLte"`
	TimeZone       string `json:"TimeZone"`
}

// NewListRequest builds the payload for one page of a window. The API treats CreatedDateLte as
// inclusive, so the exclusive window end is moved back by one second. Both bounds are rendered in
// the window's location.
func NewListRequest(w daterange.Window, page pagination.PageState, timeZone string) ListRequest {
	loc := w.Start.Location()
	return ListRequest{
		PageNumber:     page.PageNumber,
		CreatedDateGte: w.Start.In(loc).Format(utils.APITimestampLayout),
		CreatedDateLte: w.End.Add(-time.Second).In(loc).Format(utils.APITimestampLayout),
		TimeZone:       timeZone,
	}
}
