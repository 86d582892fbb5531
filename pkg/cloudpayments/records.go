package cloudpayments

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/cloudpayments-tap/extractor/pkg/utils"
)

// RecordsPath locates the records array in a /payments/list response.
const RecordsPath = "Model"

// Record is a single payment passed through exactly as the API returned it.
type Record = json.RawMessage

// ExtractRecords returns each element of the array at path. A missing or null array yields no
// records.
func ExtractRecords(body []byte, path string) ([]Record, error) {
	if !gjson.ValidBytes(body) {
		return nil, &DecodeError{Body: truncate(body), Err: errors.New("invalid JSON")}
	}
	res := gjson.GetBytes(body, path)
	if !res.Exists() || res.Type == gjson.Null {
		return nil, nil
	}
	if !res.IsArray() {
		return nil, &DecodeError{Body: truncate(body), Err: fmt.Errorf("%s is not an array", path)}
	}

	records := make([]Record, 0, len(res.Array()))
	res.ForEach(func(_, v gjson.Result) bool {
		records = append(records, Record(v.Raw))
		return true
	})
	return records, nil
}

// MaxTimestamp returns the latest value of key across records. Values without an offset are
// read in loc. Records where key is missing or unparsable are skipped; ok is false when no
// record had a usable value.
func MaxTimestamp(records []Record, key string, loc *time.Location) (latest time.Time, ok bool) {
	for _, r := range records {
		v := gjson.GetBytes(r, key)
		if v.Type != gjson.String {
			continue
		}
		t, err := utils.ParseTimestamp(v.Str, loc)
		if err != nil {
			continue
		}
		if !ok || t.After(latest) {
			latest, ok = t, true
		}
	}
	return latest, ok
}
