package xrender_test

import (
	"net/http/httptest"
	"testing"

	"github.com/omeyang/apikit/pkg/web/xrender"
	"github.com/omeyang/apikit/pkg/web/xrequest"
)

func benchRequest(b *testing.B, accept string) *xrequest.Request {
	b.Helper()
	httpReq := httptest.NewRequest("GET", "/notes", nil)
	if accept != "" {
		httpReq.Header.Set("Accept", accept)
	}
	req, err := xrequest.New(httpReq)
	if err != nil {
		b.Fatal(err)
	}
	return req
}

func BenchmarkNegotiator_Select_Simple(b *testing.B) {
	negotiator := xrender.NewDefaultNegotiator()
	renderers := []xrender.Renderer{xrender.NewJSONRenderer()}
	req := benchRequest(b, "application/json")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := negotiator.Select(req, renderers); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkNegotiator_Select_QualityList(b *testing.B) {
	negotiator := xrender.NewDefaultNegotiator()
	renderers := []xrender.Renderer{xrender.NewJSONRenderer()}
	req := benchRequest(b, "text/html;q=0.9, application/xml;q=0.8, application/json;q=0.7, */*;q=0.1")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := negotiator.Select(req, renderers); err != nil {
			b.Fatal(err)
		}
	}
}
