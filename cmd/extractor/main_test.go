package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowsCommand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		args  []string
		lines []string
	}{
		{
			name: "first run",
			args: []string{"--start-date", "2023-01-01", "--now", "2023-01-03T06:00:00"},
			lines: []string{
				"# origin 2023-01-01T00:00:00Z first_run=true",
				"[2023-01-01T00:00:00Z, 2023-01-02T00:00:00Z)\t2023-01-01T00:00:00\t2023-01-01T23:59:59",
				"[2023-01-02T00:00:00Z, 2023-01-03T00:00:00Z)\t2023-01-02T00:00:00\t2023-01-02T23:59:59",
				"[2023-01-03T00:00:00Z, 2023-01-03T06:00:00Z)\t2023-01-03T00:00:00\t2023-01-03T05:59:59",
				"# 3 windows",
			},
		},
		{
			name: "resume mid day in MSK",
			args: []string{"--start-date", "2023-01-01", "--time-zone", "MSK", "--bookmark", "2023-01-02T10:00:00", "--now", "2023-01-03"},
			lines: []string{
				"# origin 2023-01-02T10:00:00+03:00 first_run=false",
				"[2023-01-02T10:00:00+03:00, 2023-01-03T00:00:00+03:00)\t2023-01-02T10:00:00\t2023-01-02T23:59:59",
				"# 1 windows",
			},
		},
		{
			name: "bookmark in the future",
			args: []string{"--start-date", "2023-01-01", "--bookmark", "2023-02-01", "--now", "2023-01-03"},
			lines: []string{
				"# origin 2023-02-01T00:00:00Z first_run=false",
				"# 0 windows",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			app := newApp()
			app.Writer = &buf
			require.NoError(t, app.Run(append([]string{"extractor", "windows"}, tt.args...)))
			assert.Equal(t, tt.lines, strings.Split(strings.TrimSpace(buf.String()), "\n"))
		})
	}
}

func TestWindowsCommand_InvalidDate(t *testing.T) {
	t.Parallel()
	app := newApp()
	app.Writer = &bytes.Buffer{}
	err := app.Run([]string{"extractor", "windows", "--start-date", "yesterday"})
	require.ErrorContains(t, err, "invalid start date")
}

func TestRemoveCommand_RejectsNonPersistentStore(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		store   string
		wantErr error
		wantMsg string
	}{
		{name: "memory", store: storeMemory, wantErr: errNothingToRemove},
		{name: "unknown", store: "redis", wantMsg: `unknown state store "redis"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			app := newApp()
			app.Writer = &bytes.Buffer{}
			err := app.Run([]string{"extractor", "remove", "--state-store", tt.store})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.ErrorContains(t, err, tt.wantMsg)
		})
	}
}

func TestEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("START_DATE=2023-01-01\nTIME_ZONE=UTC\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("START_DATE")
		os.Unsetenv("TIME_ZONE")
	})

	var buf bytes.Buffer
	app := newApp()
	app.Writer = &buf
	err := app.Run([]string{"extractor", "--env-file", path, "windows", "--now", "2023-01-02"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "# 1 windows")

	err = newApp().Run([]string{"extractor", "--env-file", filepath.Join(t.TempDir(), "missing.env"), "windows"})
	require.ErrorContains(t, err, "failed to load env file")
}
