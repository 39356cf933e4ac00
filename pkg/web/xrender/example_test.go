package xrender_test

import (
	"fmt"
	"net/http/httptest"

	"github.com/omeyang/apikit/pkg/web/xrender"
	"github.com/omeyang/apikit/pkg/web/xrequest"
)

func ExampleDefaultNegotiator_Select() {
	httpReq := httptest.NewRequest("GET", "/api/notes", nil)
	httpReq.Header.Set("Accept", "text/*")

	req, err := xrequest.New(httpReq)
	if err != nil {
		fmt.Println("new failed:", err)
		return
	}

	negotiator := xrender.NewDefaultNegotiator()
	renderer, mediaType, err := negotiator.Select(req, []xrender.Renderer{
		xrender.NewJSONRenderer(),
		xrender.NewPlainTextRenderer(),
	})
	if err != nil {
		fmt.Println("negotiation failed:", err)
		return
	}

	fmt.Println("renderer:", renderer.MediaType())
	fmt.Println("accepted:", mediaType)
	// Output:
	// renderer: text/plain
	// accepted: text/plain
}

func ExampleResponse_Write() {
	resp := xrender.OK(map[string]string{"status": "healthy"})
	resp.SetNegotiated(xrender.NewJSONRenderer(), "application/json")

	rec := httptest.NewRecorder()
	if err := resp.Write(rec, false); err != nil {
		fmt.Println("write failed:", err)
		return
	}

	fmt.Println(rec.Code)
	fmt.Println(rec.Body.String())
	fmt.Println(rec.Header().Get("Content-Type"))
	// Output:
	// 200
	// {"status":"healthy"}
	// application/json
}
