package xlog_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/omeyang/apikit/pkg/context/xctx"
	"github.com/omeyang/apikit/pkg/observability/xlog"
)

// enrichTestCase 定义 EnrichHandler 测试用例
type enrichTestCase struct {
	name       string
	setupCtx   func(context.Context) context.Context
	wantKeys   []string // 期望输出包含的 key
	wantValues []string // 期望输出包含的 value
	notWant    []string // 期望输出不包含的内容
}

func TestEnrichHandler(t *testing.T) {
	tests := []enrichTestCase{
		{
			name: "with_request_id",
			setupCtx: func(ctx context.Context) context.Context {
				ctx, _ = xctx.WithRequestID(ctx, "req-123")
				return ctx
			},
			wantKeys:   []string{"request_id"},
			wantValues: []string{"req-123"},
		},
		{
			name: "with_principal",
			setupCtx: func(ctx context.Context) context.Context {
				ctx, _ = xctx.WithPrincipal(ctx, &xctx.Principal{ID: "user-42", Name: "alice"})
				return ctx
			},
			wantKeys:   []string{"principal_id"},
			wantValues: []string{"user-42"},
		},
		{
			name: "with_all_fields",
			setupCtx: func(ctx context.Context) context.Context {
				ctx, _ = xctx.WithRequestID(ctx, "req-999")
				ctx, _ = xctx.WithPrincipal(ctx, &xctx.Principal{ID: "user-888"})
				ctx, _ = xctx.WithClientIP(ctx, "198.51.100.7")
				return ctx
			},
			wantValues: []string{"req-999", "user-888", "198.51.100.7"},
		},
		{
			name: "anonymous_principal_omitted",
			setupCtx: func(ctx context.Context) context.Context {
				ctx, _ = xctx.WithPrincipal(ctx, xctx.Anonymous())
				return ctx
			},
			wantValues: []string{"test message"},
			notWant:    []string{"principal_id"},
		},
		{
			name: "empty_context",
			setupCtx: func(ctx context.Context) context.Context {
				return ctx // 不添加任何信息
			},
			wantValues: []string{"test message"},
			notWant:    []string{"request_id", "principal_id", "client_ip"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, cleanup, err := xlog.New().
				SetOutput(&buf).
				SetFormat("json").
				Build() // enrich 默认启用
			if err != nil {
				t.Fatalf("Build() error: %v", err)
			}
			testCleanup(t, cleanup)

			ctx := tt.setupCtx(context.Background())
			logger.Info(ctx, "test message")

			output := buf.String()
			for _, key := range tt.wantKeys {
				if !strings.Contains(output, key) {
					t.Errorf("output missing key %q\noutput: %s", key, output)
				}
			}
			for _, value := range tt.wantValues {
				if !strings.Contains(output, value) {
					t.Errorf("output missing value %q\noutput: %s", value, output)
				}
			}
			for _, unwanted := range tt.notWant {
				if strings.Contains(output, unwanted) {
					t.Errorf("output should not contain %q\noutput: %s", unwanted, output)
				}
			}
		})
	}
}

func TestNewEnrichHandler_NilBase(t *testing.T) {
	_, err := xlog.NewEnrichHandler(nil)
	if err == nil {
		t.Fatal("NewEnrichHandler(nil) should fail")
	}
	if err != xlog.ErrNilHandler {
		t.Errorf("error = %v, want ErrNilHandler", err)
	}
}

func TestEnrichHandler_SetEnrichDisabled(t *testing.T) {
	var buf bytes.Buffer
	logger, cleanup, err := xlog.New().
		SetOutput(&buf).
		SetFormat("json").
		SetEnrich(false).
		Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	testCleanup(t, cleanup)

	ctx, _ := xctx.WithRequestID(context.Background(), "req-should-be-absent")
	logger.Info(ctx, "enrich disabled")

	if strings.Contains(buf.String(), "req-should-be-absent") {
		t.Errorf("enrich disabled but request_id injected\noutput: %s", buf.String())
	}
}

func TestEnrichHandler_WithAttrsPreservesEnrich(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewJSONHandler(&buf, nil)
	handler, err := xlog.NewEnrichHandler(base)
	if err != nil {
		t.Fatalf("NewEnrichHandler error: %v", err)
	}

	derived := handler.WithAttrs([]slog.Attr{slog.String("component", "api")})

	ctx, _ := xctx.WithRequestID(context.Background(), "req-derived")
	record := slog.NewRecord(time.Now(), slog.LevelInfo, "derived handler", 0)
	if err := derived.Handle(ctx, record); err != nil {
		t.Fatalf("Handle error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "req-derived") {
		t.Errorf("derived handler lost enrich capability\noutput: %s", output)
	}
	if !strings.Contains(output, "component") {
		t.Errorf("derived handler lost attrs\noutput: %s", output)
	}
}

func TestEnrichHandler_NilContextSafe(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewJSONHandler(&buf, nil)
	handler, err := xlog.NewEnrichHandler(base)
	if err != nil {
		t.Fatalf("NewEnrichHandler error: %v", err)
	}

	record := slog.NewRecord(time.Now(), slog.LevelInfo, "nil ctx", 0)
	//nolint:staticcheck // 显式测试 nil context 行为
	if err := handler.Handle(nil, record); err != nil {
		t.Fatalf("Handle with nil ctx should not fail: %v", err)
	}
	if !strings.Contains(buf.String(), "nil ctx") {
		t.Errorf("record should still be written\noutput: %s", buf.String())
	}
}
