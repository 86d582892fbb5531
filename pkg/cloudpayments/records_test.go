package cloudpayments

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractRecords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		want    []string
		wantErr bool
	}{
		{
			name: "records passed through unmodified",
			body: `{"Success":true,"Model":[{"TransactionId":1,"Amount":10.5},{"TransactionId":2, "Extra":{"a":[1,2]}}]}`,
			want: []string{`{"TransactionId":1,"Amount":10.5}`, `{"TransactionId":2, "Extra":{"a":[1,2]}}`},
		},
		{
			name: "empty model",
			body: `{"Success":true,"Model":[]}`,
			want: []string{},
		},
		{
			name: "missing model",
			body: `{"Success":true}`,
		},
		{
			name: "null model",
			body: `{"Success":true,"Model":null}`,
		},
		{
			name:    "model is not an array",
			body:    `{"Model":{"TransactionId":1}}`,
			wantErr: true,
		},
		{
			name:    "invalid json",
			body:    `<html>`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			records, err := ExtractRecords([]byte(tt.body), RecordsPath)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrFatal)
				return
			}
			require.NoError(t, err)
			require.Len(t, records, len(tt.want))
			for i, r := range records {
				assert.Equal(t, tt.want[i], string(r))
			}
		})
	}
}

func TestMaxTimestamp(t *testing.T) {
	t.Parallel()

	records := []Record{
		Record(`{"CreatedDateIso":"2023-01-01T10:00:00"}`),
		Record(`{"CreatedDateIso":"2023-01-01T23:59:59"}`),
		Record(`{"CreatedDateIso":"garbage"}`),
		Record(`{"CreatedDateIso":12}`),
		Record(`{"TransactionId":5}`),
		Record(`{"CreatedDateIso":"2023-01-01T05:00:00"}`),
	}

	got, ok := MaxTimestamp(records, "CreatedDateIso", time.UTC)
	require.True(t, ok)
	assert.Equal(t, time.Date(2023, 1, 1, 23, 59, 59, 0, time.UTC), got)

	_, ok = MaxTimestamp([]Record{Record(`{"TransactionId":1}`)}, "CreatedDateIso", time.UTC)
	assert.False(t, ok)

	_, ok = MaxTimestamp(nil, "CreatedDateIso", time.UTC)
	assert.False(t, ok)
}
