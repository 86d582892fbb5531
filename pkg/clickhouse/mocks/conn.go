// Package mocks provides testify mocks of the ClickHouse driver interfaces.
package mocks

import (
	"context"
	"fmt"
	"reflect"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/stretchr/testify/mock"
)

var _ driver.Conn = (*MockConn)(nil)

// MockConn is a mock implementation of driver.Conn. Query methods are matched on
// (ctx, query, args...).
type MockConn struct {
	mock.Mock
}

func queryArgs(ctx context.Context, query string, args []any) []any {
	return append([]any{ctx, query}, args...)
}

func (m *MockConn) Contributors() []string {
	return m.Called().Get(0).([]string)
}

func (m *MockConn) ServerVersion() (*driver.ServerVersion, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*driver.ServerVersion), args.Error(1)
}

func (m *MockConn) Select(ctx context.Context, _ any, query string, args ...any) error {
	return m.Called(queryArgs(ctx, query, args)...).Error(0)
}

func (m *MockConn) Query(ctx context.Context, query string, args ...any) (driver.Rows, error) {
	res := m.Called(queryArgs(ctx, query, args)...)
	if res.Get(0) == nil {
		return nil, res.Error(1)
	}
	return res.Get(0).(driver.Rows), res.Error(1)
}

func (m *MockConn) QueryRow(ctx context.Context, query string, args ...any) driver.Row {
	res := m.Called(queryArgs(ctx, query, args)...)
	if res.Get(0) == nil {
		return nil
	}
	return res.Get(0).(driver.Row)
}

func (m *MockConn) Exec(ctx context.Context, query string, args ...any) error {
	return m.Called(queryArgs(ctx, query, args)...).Error(0)
}

func (m *MockConn) AsyncInsert(ctx context.Context, query string, wait bool, args ...any) error {
	return m.Called(append([]any{ctx, query, wait}, args...)...).Error(0)
}

func (m *MockConn) PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error) {
	callArgs := []any{ctx, query}
	for _, opt := range opts {
		callArgs = append(callArgs, opt)
	}
	res := m.Called(callArgs...)
	if res.Get(0) == nil {
		return nil, res.Error(1)
	}
	return res.Get(0).(driver.Batch), res.Error(1)
}

func (m *MockConn) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockConn) Stats() driver.Stats {
	args := m.Called()
	if args.Get(0) == nil {
		return driver.Stats{}
	}
	return args.Get(0).(driver.Stats)
}

func (m *MockConn) Close() error {
	return m.Called().Error(0)
}

// Row is a driver.Row that scans fixed values into the destinations, in order.
type Row struct {
	Values []any
	ErrVal error
}

var _ driver.Row = Row{}

func (r Row) Err() error {
	return r.ErrVal
}

// Scan assigns Values[i] to *dest[i]. It returns ErrVal without scanning when set.
func (r Row) Scan(dest ...any) error {
	if r.ErrVal != nil {
		return r.ErrVal
	}
	if len(dest) != len(r.Values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(r.Values))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d)
		if target.Kind() != reflect.Pointer || target.IsNil() {
			return fmt.Errorf("scan: destination %d is not a non-nil pointer", i)
		}
		value := reflect.ValueOf(r.Values[i])
		if !value.Type().AssignableTo(target.Elem().Type()) {
			return fmt.Errorf("scan: cannot assign %s to %s", value.Type(), target.Elem().Type())
		}
		target.Elem().Set(value)
	}
	return nil
}

func (r Row) ScanStruct(dest any) error {
	return r.Scan(dest)
}
