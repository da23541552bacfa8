package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_JSONIncludesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Format: "json", Component: ComponentAudit, Output: &buf})

	logger.Info("Ledger event received", NewFields().WithRecord("gastos", 3).WithError(errors.New("boom")).ToSlice()...)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, ComponentAudit, entry[FieldComponent])
	assert.Equal(t, "gastos", entry[FieldResource])
	assert.EqualValues(t, 3, entry[FieldRecordID])
	assert.Equal(t, "boom", entry[FieldError])
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelWarn, Output: &buf})
	logger.Info("hidden")
	assert.Empty(t, buf.String())
	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestFromContext(t *testing.T) {
	fallback := FromContext(context.Background())
	assert.Equal(t, ComponentApp, fallback.Component())

	logger := New(DefaultConfig()).WithComponent(ComponentHTTP)
	ctx := IntoContext(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
}

func TestFields_SkipEmpty(t *testing.T) {
	f := NewFields().WithRequestID("").WithUser(nil).WithError(nil)
	assert.Empty(t, f)
}
