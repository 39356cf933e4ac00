package xlog_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"log/slog"

	"github.com/omeyang/apikit/pkg/observability/xlog"
)

// resetGlobal 在测试结束后恢复全局 logger 状态
func resetGlobal(t *testing.T) {
	t.Helper()
	t.Cleanup(xlog.ResetDefault)
}

// newBufferedDefault 创建输出到 buffer 的 logger 并设为全局默认
func newBufferedDefault(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger, cleanup, err := xlog.New().
		SetOutput(&buf).
		SetLevel(xlog.LevelDebug).
		Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	testCleanup(t, cleanup)
	xlog.SetDefault(logger)
	return &buf
}

func TestDefault_LazyInit(t *testing.T) {
	resetGlobal(t)
	xlog.ResetDefault()

	first := xlog.Default()
	if first == nil {
		t.Fatal("Default() returned nil")
	}

	second := xlog.Default()
	if first != second {
		t.Error("Default() should return the same instance")
	}
}

func TestSetDefault_Replaces(t *testing.T) {
	resetGlobal(t)

	buf := newBufferedDefault(t)
	xlog.Info(context.Background(), "through default")

	if !strings.Contains(buf.String(), "through default") {
		t.Errorf("global Info should write through SetDefault logger\noutput: %s", buf.String())
	}
}

func TestSetDefault_NilIgnored(t *testing.T) {
	resetGlobal(t)

	current := xlog.Default()
	xlog.SetDefault(nil)

	if xlog.Default() != current {
		t.Error("SetDefault(nil) should be ignored")
	}
}

func TestGlobalFunctions(t *testing.T) {
	resetGlobal(t)
	buf := newBufferedDefault(t)

	ctx := context.Background()
	xlog.Debug(ctx, "g-debug")
	xlog.Info(ctx, "g-info")
	xlog.Warn(ctx, "g-warn")
	xlog.Error(ctx, "g-error", slog.String("k", "v"))

	output := buf.String()
	for _, want := range []string{"g-debug", "g-info", "g-warn", "g-error"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q\noutput: %s", want, output)
		}
	}
}

func TestGlobalStack(t *testing.T) {
	resetGlobal(t)
	buf := newBufferedDefault(t)

	xlog.Stack(context.Background(), "g-stack")

	output := buf.String()
	if !strings.Contains(output, "g-stack") {
		t.Errorf("output missing message\noutput: %s", output)
	}
	if !strings.Contains(output, "goroutine") {
		t.Errorf("output missing stack\noutput: %s", output)
	}
}

func TestDefault_FallbackOnBuildError(t *testing.T) {
	resetGlobal(t)
	xlog.ResetDefault()

	// 让默认构建失败，验证降级到最小可用 logger 而非 panic
	restore := xlog.SetNewBuilderForTest(func() *xlog.Builder {
		return xlog.New().SetFormat("not-a-format")
	})
	t.Cleanup(restore)

	logger := xlog.Default()
	if logger == nil {
		t.Fatal("Default() should fall back to a usable logger")
	}
	// 降级 logger 可正常记录（写 stderr），不应 panic
	logger.Info(context.Background(), "fallback logger works")
}

func TestResetDefault_Reinitializes(t *testing.T) {
	resetGlobal(t)

	buf := newBufferedDefault(t)
	xlog.ResetDefault()

	// 重置后全局函数走新的默认 logger（stderr），不再写入 buf
	before := buf.Len()
	xlog.Info(context.Background(), "after reset")
	if buf.Len() != before {
		t.Error("after ResetDefault, old logger should not receive writes")
	}
}
