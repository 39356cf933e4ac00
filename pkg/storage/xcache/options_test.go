package xcache

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// 键构造测试
// =============================================================================

func TestDefaultKeyFunc(t *testing.T) {
	assert.Equal(t, "app:1:user:1", DefaultKeyFunc("user:1", "app", 1))
	assert.Equal(t, "app:2:k", DefaultKeyFunc("k", "app", 2))
	assert.Equal(t, "1:k", DefaultKeyFunc("k", "", 1))
	assert.Equal(t, "app:1:", DefaultKeyFunc("", "app", 1))
}

func TestOptions_FullKeyAndVersionRoot(t *testing.T) {
	o := defaultOptions()
	WithKeyPrefix("app")(o)

	assert.Equal(t, "app:1:user:1", o.fullKey("user:1", itemOptions{}))
	assert.Equal(t, "app:1:", o.versionRoot(itemOptions{}))

	io := resolveItem([]ItemOption{WithItemVersion(5)})
	assert.Equal(t, "app:5:user:1", o.fullKey("user:1", io))
	assert.Equal(t, "app:5:", o.versionRoot(io))
}

func TestOptions_CustomKeyFunc(t *testing.T) {
	o := defaultOptions()
	WithKeyFunc(func(key, prefix string, version int) string {
		return prefix + "/" + strconv.Itoa(version) + "/" + key
	})(o)
	WithKeyPrefix("svc")(o)

	assert.Equal(t, "svc/1/k", o.fullKey("k", itemOptions{}))
	assert.Equal(t, "svc/1/", o.versionRoot(itemOptions{}))
}

// =============================================================================
// TTL 解析测试
// =============================================================================

func TestOptions_ResolveTTL(t *testing.T) {
	o := defaultOptions()

	// 默认 TTL 为 NoExpiry: 0 与 NoExpiry 都落到"不过期"
	assert.Equal(t, time.Duration(0), o.resolveTTL(0))
	assert.Equal(t, time.Duration(0), o.resolveTTL(NoExpiry))
	assert.Equal(t, 5*time.Second, o.resolveTTL(5*time.Second))

	WithDefaultTTL(time.Minute)(o)
	assert.Equal(t, time.Minute, o.resolveTTL(0))
	assert.Equal(t, time.Duration(0), o.resolveTTL(NoExpiry))
	assert.Equal(t, 5*time.Second, o.resolveTTL(5*time.Second))
}

// =============================================================================
// 选项守卫测试
// =============================================================================

func TestOptions_InvalidValuesAreIgnored(t *testing.T) {
	o := defaultOptions()

	WithVersion(-1)(o)
	assert.Equal(t, 1, o.version)

	WithVersion(0)(o)
	assert.Equal(t, 0, o.version)

	WithKeyFunc(nil)(o)
	assert.NotNil(t, o.keyFunc)

	WithSerializer(nil)(o)
	assert.NotNil(t, o.serializer)

	WithDefaultTTL(0)(o)
	assert.Equal(t, NoExpiry, o.defaultTTL)

	WithDefaultTTL(-2 * time.Second)(o)
	assert.Equal(t, NoExpiry, o.defaultTTL)

	WithScanCount(0)(o)
	assert.Equal(t, int64(DefaultScanCount), o.scanCount)

	WithErrorLogger(nil)(o)
	assert.Nil(t, o.errorLogger)

	WithBreaker(nil)(o)
	assert.Nil(t, o.breaker)

	WithObserver(nil)(o)
	assert.Nil(t, o.observer)
}

func TestItemOptions_VersionOverride(t *testing.T) {
	io := resolveItem(nil)
	assert.Nil(t, io.version)

	io = resolveItem([]ItemOption{WithItemVersion(7)})
	if assert.NotNil(t, io.version) {
		assert.Equal(t, 7, *io.version)
	}

	o := defaultOptions()
	assert.Equal(t, 1, o.itemVersion(itemOptions{}))
	assert.Equal(t, 7, o.itemVersion(io))
}
