package xrotate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRotator(t *testing.T, opts ...Option) Rotator {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.log")
	r, err := NewLumberjack(path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = r.Close()
	})
	return r
}

func TestNewLumberjack_EmptyFilename_ReturnsError(t *testing.T) {
	r, err := NewLumberjack("")
	assert.ErrorIs(t, err, ErrEmptyFilename)
	assert.Nil(t, r)
}

func TestNewLumberjack_InvalidConfig_ReturnsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")

	tests := []struct {
		name string
		opts []Option
		want error
	}{
		{"zero max size", []Option{WithMaxSize(0)}, ErrInvalidMaxSize},
		{"huge max size", []Option{WithMaxSize(maxSizeMB + 1)}, ErrInvalidMaxSize},
		{"negative backups", []Option{WithMaxBackups(-1)}, ErrInvalidMaxBackups},
		{"negative age", []Option{WithMaxAge(-1)}, ErrInvalidMaxAge},
		{"no cleanup policy", []Option{WithMaxBackups(0), WithMaxAge(0)}, ErrNoCleanupPolicy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLumberjack(path, tt.opts...)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewLumberjack_CreatesParentDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	r, err := NewLumberjack(filepath.Join(dir, "test.log"))
	require.NoError(t, err)
	defer r.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestWrite_CreatesAndAppendsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "write.log")
	r, err := NewLumberjack(path)
	require.NoError(t, err)
	defer r.Close()

	n, err := r.Write([]byte("hello\n"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}

func TestWrite_AfterClose_ReturnsErrClosed(t *testing.T) {
	r := newTestRotator(t)
	require.NoError(t, r.Close())

	_, err := r.Write([]byte("late"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestClose_Twice_ReturnsErrClosed(t *testing.T) {
	r := newTestRotator(t)
	require.NoError(t, r.Close())
	assert.ErrorIs(t, r.Close(), ErrClosed)
}

func TestRotate_AfterClose_ReturnsErrClosed(t *testing.T) {
	r := newTestRotator(t)
	require.NoError(t, r.Close())
	assert.ErrorIs(t, r.Rotate(), ErrClosed)
}

func TestRotate_MovesCurrentFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rotate.log")
	r, err := NewLumberjack(path, WithCompress(false))
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Write([]byte("before rotate\n"))
	require.NoError(t, err)
	require.NoError(t, r.Rotate())
	_, err = r.Write([]byte("after rotate\n"))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	// 轮转后应存在当前文件 + 至少一个备份
	assert.GreaterOrEqual(t, len(entries), 2)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "after rotate\n", string(data))
}

func TestWrite_Concurrent(t *testing.T) {
	r := newTestRotator(t)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				_, _ = r.Write([]byte("concurrent line\n"))
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
