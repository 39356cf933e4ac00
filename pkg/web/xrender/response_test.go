package xrender_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/apikit/pkg/web/xerror"
	"github.com/omeyang/apikit/pkg/web/xrender"
)

func TestResponseConstructors(t *testing.T) {
	data := map[string]string{"k": "v"}

	ok := xrender.OK(data)
	assert.Equal(t, http.StatusOK, ok.Status)
	assert.Equal(t, data, ok.Data)

	created := xrender.Created(data)
	assert.Equal(t, http.StatusCreated, created.Status)

	noContent := xrender.NoContent()
	assert.Equal(t, http.StatusNoContent, noContent.Status)
	assert.Nil(t, noContent.Data)
}

func TestError_BuildsPayloadAndHeaders(t *testing.T) {
	resp := xrender.Error(xerror.NewThrottled(3 * time.Second))

	assert.Equal(t, http.StatusTooManyRequests, resp.Status)
	assert.Equal(t, "3", resp.Header.Get("Retry-After"))

	payload, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, xerror.CodeThrottled, payload["code"])
	assert.Contains(t, payload["detail"], "throttled")
}

func TestError_NilDegradesToServerError(t *testing.T) {
	resp := xrender.Error(nil)
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
}

func TestWrite_JSONBody(t *testing.T) {
	resp := xrender.OK(map[string]int{"a": 1})
	resp.SetNegotiated(xrender.NewJSONRenderer(), "application/json")

	rec := httptest.NewRecorder()
	require.NoError(t, resp.Write(rec, false))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"a":1}`, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "7", rec.Header().Get("Content-Length"))
}

func TestWrite_CharsetAppended(t *testing.T) {
	resp := xrender.OK("hello")
	resp.SetNegotiated(xrender.NewPlainTextRenderer(), "text/plain")

	rec := httptest.NewRecorder()
	require.NoError(t, resp.Write(rec, false))

	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "hello", rec.Body.String())
}

func TestWrite_NegotiatedMediaTypeUsed(t *testing.T) {
	resp := xrender.OK(map[string]int{"a": 1})
	resp.SetNegotiated(xrender.NewJSONRenderer(), "application/json; version=2")

	rec := httptest.NewRecorder()
	require.NoError(t, resp.Write(rec, false))

	assert.Equal(t, "application/json; version=2", rec.Header().Get("Content-Type"))
}

func TestWrite_NoContent_SuppressesBody(t *testing.T) {
	resp := xrender.NoContent()
	resp.SetNegotiated(xrender.NewJSONRenderer(), "application/json")

	rec := httptest.NewRecorder()
	require.NoError(t, resp.Write(rec, false))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, rec.Body.Len())
	assert.Empty(t, rec.Header().Get("Content-Type"))
	assert.Empty(t, rec.Header().Get("Content-Length"))
}

func TestWrite_HeadOnly_HeadersWithoutBody(t *testing.T) {
	resp := xrender.OK(map[string]int{"a": 1})
	resp.SetNegotiated(xrender.NewJSONRenderer(), "application/json")

	rec := httptest.NewRecorder()
	require.NoError(t, resp.Write(rec, true))

	assert.Zero(t, rec.Body.Len(), "HEAD 不发送响应体")
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "7", rec.Header().Get("Content-Length"), "Content-Length 仍反映 GET 的响应体")
}

func TestWrite_NilData_EmptyBody(t *testing.T) {
	resp := xrender.OK(nil)
	resp.SetNegotiated(xrender.NewJSONRenderer(), "application/json")

	rec := httptest.NewRecorder()
	require.NoError(t, resp.Write(rec, false))

	assert.Zero(t, rec.Body.Len())
	assert.Empty(t, rec.Header().Get("Content-Type"), "空响应体不声明 Content-Type")
	assert.Equal(t, "0", rec.Header().Get("Content-Length"))
}

func TestWrite_NoRenderer_ReturnsError(t *testing.T) {
	resp := xrender.OK(map[string]int{"a": 1})

	rec := httptest.NewRecorder()
	err := resp.Write(rec, false)
	require.ErrorIs(t, err, xrender.ErrNoRenderers)
}

func TestWrite_ExtraHeadersMerged(t *testing.T) {
	resp := xrender.OK("x")
	resp.SetHeader("X-Custom", "1")
	resp.SetNegotiated(xrender.NewPlainTextRenderer(), "text/plain")

	rec := httptest.NewRecorder()
	require.NoError(t, resp.Write(rec, false))

	assert.Equal(t, "1", rec.Header().Get("X-Custom"))
}

func TestPatchVary(t *testing.T) {
	tests := []struct {
		name     string
		existing string
		fields   []string
		want     string
	}{
		{name: "fresh_header", existing: "", fields: []string{"Accept"}, want: "Accept"},
		{name: "duplicate_ignored_case_insensitive", existing: "Accept", fields: []string{"accept"}, want: "Accept"},
		{name: "appended_preserving_order", existing: "Accept", fields: []string{"Origin"}, want: "Accept, Origin"},
		{name: "multiple_new_fields", existing: "", fields: []string{"Accept", "Accept-Language"}, want: "Accept, Accept-Language"},
		{name: "star_collapses", existing: "Accept", fields: []string{"*"}, want: "*"},
		{name: "existing_star_wins", existing: "*", fields: []string{"Accept"}, want: "*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := make(http.Header)
			if tt.existing != "" {
				h.Set("Vary", tt.existing)
			}
			xrender.PatchVary(h, tt.fields...)
			assert.Equal(t, tt.want, h.Get("Vary"))
		})
	}
}

func TestPatchVary_NoFields_NoHeader(t *testing.T) {
	h := make(http.Header)
	xrender.PatchVary(h)
	_, present := h["Vary"]
	assert.False(t, present)
}
