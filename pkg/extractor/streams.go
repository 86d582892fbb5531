package extractor

import "github.com/cloudpayments-tap/extractor/pkg/cloudpayments"

// StreamConfig declares an incremental stream served by a paginated list endpoint.
type StreamConfig struct {
	Name        string
	Path        string
	RecordsPath string
	// ReplicationKey is the record field holding the creation time that advances the bookmark.
	ReplicationKey string
	PrimaryKeys    []string
	// HasMorePath is the gjson path of an optional boolean "more pages" flag. Empty disables it.
	HasMorePath string
}

// PaymentsStream is the CloudPayments transactions stream.
var PaymentsStream = StreamConfig{
	Name:           "payments",
	Path:           cloudpayments.PaymentsListPath,
	RecordsPath:    cloudpayments.RecordsPath,
	ReplicationKey: "CreatedDateIso",
	PrimaryKeys:    []string{"TransactionId"},
	HasMorePath:    "HasMore",
}
