package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/cloudpayments-tap/extractor/pkg/checkpointer"
	"github.com/cloudpayments-tap/extractor/pkg/extractor"
)

const (
	messageSchema = "SCHEMA"
	messageRecord = "RECORD"
	messageState  = "STATE"
)

type message struct {
	Type               string          `json:"type"`
	Stream             string          `json:"stream,omitempty"`
	Schema             json.RawMessage `json:"schema,omitempty"`
	KeyProperties      []string        `json:"key_properties,omitempty"`
	BookmarkProperties []string        `json:"bookmark_properties,omitempty"`
	Record             json.RawMessage `json:"record,omitempty"`
	TimeExtracted      string          `json:"time_extracted,omitempty"`
	Value              *stateValue     `json:"value,omitempty"`
}

type stateValue struct {
	Bookmarks map[string]streamBookmark `json:"bookmarks"`
}

type streamBookmark struct {
	ReplicationKey      string `json:"replication_key"`
	ReplicationKeyValue string `json:"replication_key_value"`
	WindowStart         string `json:"window_start,omitempty"`
	PageNumber          int    `json:"page_number,omitempty"`
}

// Records are passed through as they came from the API, so the schema only pins the keys.
var paymentsSchema = json.RawMessage(`{"type":"object","additionalProperties":true,"properties":{"TransactionId":{"type":"integer"},"CreatedDateIso":{"type":["string","null"],"format":"date-time"}}}`)

// singerWriter writes tap messages as JSON lines.
type singerWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
	now func() time.Time
}

func newSingerWriter(w io.Writer) *singerWriter {
	return &singerWriter{enc: json.NewEncoder(w), now: time.Now}
}

func (w *singerWriter) write(m message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(m); err != nil {
		return fmt.Errorf("write %s message: %w", m.Type, err)
	}
	return nil
}

func (w *singerWriter) WriteSchema(s extractor.StreamConfig) error {
	m := message{
		Type:          messageSchema,
		Stream:        s.Name,
		Schema:        paymentsSchema,
		KeyProperties: s.PrimaryKeys,
	}
	if s.ReplicationKey != "" {
		m.BookmarkProperties = []string{s.ReplicationKey}
	}
	return w.write(m)
}

func (w *singerWriter) WriteRecord(stream string, record json.RawMessage) error {
	return w.write(message{
		Type:          messageRecord,
		Stream:        stream,
		Record:        record,
		TimeExtracted: w.now().UTC().Format(time.RFC3339),
	})
}

func (w *singerWriter) WriteState(s extractor.StreamConfig, b checkpointer.Bookmark) error {
	sb := streamBookmark{
		ReplicationKey:      s.ReplicationKey,
		ReplicationKeyValue: b.ReplicationValue.UTC().Format(time.RFC3339),
		PageNumber:          b.PageNumber,
	}
	if !b.WindowStart.IsZero() {
		sb.WindowStart = b.WindowStart.UTC().Format(time.RFC3339)
	}
	return w.write(message{
		Type:  messageState,
		Value: &stateValue{Bookmarks: map[string]streamBookmark{s.Name: sb}},
	})
}

// readStateFile extracts the bookmark of a stream from a state file. Both a bare state value
// and a full STATE message are accepted. exists is false when the stream has no bookmark.
func readStateFile(path, stream string) (checkpointer.Bookmark, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return checkpointer.Bookmark{}, false, fmt.Errorf("read state file: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return checkpointer.Bookmark{}, false, fmt.Errorf("state file %s is not valid JSON", path)
	}
	root := gjson.ParseBytes(data)
	if v := root.Get("value"); v.Exists() {
		root = v
	}
	entry := root.Get("bookmarks." + gjson.Escape(stream))
	if !entry.Exists() {
		return checkpointer.Bookmark{}, false, nil
	}

	b := checkpointer.Bookmark{Stream: stream, PageNumber: int(entry.Get("page_number").Int())}
	b.ReplicationValue, err = time.Parse(time.RFC3339, entry.Get("replication_key_value").String())
	if err != nil {
		return checkpointer.Bookmark{}, false, fmt.Errorf("state file replication_key_value: %w", err)
	}
	if ws := entry.Get("window_start"); ws.Exists() {
		if b.WindowStart, err = time.Parse(time.RFC3339, ws.String()); err != nil {
			return checkpointer.Bookmark{}, false, fmt.Errorf("state file window_start: %w", err)
		}
	}
	return b, true, nil
}
