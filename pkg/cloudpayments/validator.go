package cloudpayments

import (
	"net/http"
	"slices"

	"github.com/tidwall/gjson"
)

// Validate classifies a response. Checks run in order: retriable status, fatal status,
// then the payload's Success flag. A nil return means the response can be parsed for records.
func Validate(statusCode int, body []byte, extraRetry []int) error {
	if slices.Contains(extraRetry, statusCode) ||
		(statusCode >= http.StatusInternalServerError && statusCode <= 599) {
		return &RetriableHTTPError{StatusCode: statusCode, Body: truncate(body)}
	}

	if statusCode >= http.StatusBadRequest && statusCode < http.StatusInternalServerError {
		return &FatalHTTPError{StatusCode: statusCode, Body: truncate(body)}
	}

	if success := gjson.GetBytes(body, "Success"); success.Type == gjson.False {
		return &FatalBusinessError{
			StatusCode: statusCode,
			Message:    gjson.GetBytes(body, "Message").String(),
			Body:       truncate(body),
		}
	}

	return nil
}
