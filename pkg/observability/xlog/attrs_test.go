package xlog_test

import (
	"errors"
	"testing"
	"time"

	"log/slog"

	"github.com/omeyang/apikit/pkg/observability/xlog"
)

func TestErr(t *testing.T) {
	t.Run("nil_error_returns_empty_attr", func(t *testing.T) {
		attr := xlog.Err(nil)
		if attr.Key != "" {
			t.Errorf("Err(nil).Key = %q, want empty", attr.Key)
		}
	})

	t.Run("non_nil_error", func(t *testing.T) {
		attr := xlog.Err(errors.New("boom"))
		if attr.Key != xlog.KeyError {
			t.Errorf("Key = %q, want %q", attr.Key, xlog.KeyError)
		}
		if attr.Value.String() != "boom" {
			t.Errorf("Value = %q, want %q", attr.Value.String(), "boom")
		}
	})
}

func TestAttrConstructors(t *testing.T) {
	tests := []struct {
		name      string
		attr      slog.Attr
		wantKey   string
		wantValue string
	}{
		{name: "duration", attr: xlog.Duration(90 * time.Second), wantKey: xlog.KeyDuration, wantValue: "1m30s"},
		{name: "component", attr: xlog.Component("dispatch"), wantKey: xlog.KeyComponent, wantValue: "dispatch"},
		{name: "operation", attr: xlog.Operation("cache.get"), wantKey: xlog.KeyOperation, wantValue: "cache.get"},
		{name: "method", attr: xlog.Method("POST"), wantKey: xlog.KeyMethod, wantValue: "POST"},
		{name: "path", attr: xlog.Path("/api/notes"), wantKey: xlog.KeyPath, wantValue: "/api/notes"},
		{name: "principal_id", attr: xlog.PrincipalID("user-1"), wantKey: xlog.KeyPrincipalID, wantValue: "user-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.attr.Key != tt.wantKey {
				t.Errorf("Key = %q, want %q", tt.attr.Key, tt.wantKey)
			}
			if got := tt.attr.Value.String(); got != tt.wantValue {
				t.Errorf("Value = %q, want %q", got, tt.wantValue)
			}
		})
	}
}

func TestCount(t *testing.T) {
	attr := xlog.Count(42)
	if attr.Key != xlog.KeyCount {
		t.Errorf("Key = %q, want %q", attr.Key, xlog.KeyCount)
	}
	if attr.Value.Int64() != 42 {
		t.Errorf("Value = %d, want 42", attr.Value.Int64())
	}
}

func TestStatusCode(t *testing.T) {
	attr := xlog.StatusCode(429)
	if attr.Key != xlog.KeyStatusCode {
		t.Errorf("Key = %q, want %q", attr.Key, xlog.KeyStatusCode)
	}
	if attr.Value.Int64() != 429 {
		t.Errorf("Value = %d, want 429", attr.Value.Int64())
	}
}
