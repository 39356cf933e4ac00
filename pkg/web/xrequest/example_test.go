package xrequest_test

import (
	"fmt"
	"net/http/httptest"
	"strings"

	"github.com/omeyang/apikit/pkg/web/xrequest"
)

func ExampleNew() {
	httpReq := httptest.NewRequest("POST", "/api/notes", strings.NewReader(`{"title":"hello"}`))
	httpReq.Header.Set("Content-Type", "application/json")

	req, err := xrequest.New(httpReq,
		xrequest.WithParsers(xrequest.NewJSONParser()),
		xrequest.WithMaxBodyBytes(1<<20),
	)
	if err != nil {
		fmt.Println("new failed:", err)
		return
	}

	var payload struct {
		Title string `json:"title"`
	}
	if err := req.Data(&payload); err != nil {
		fmt.Println("parse failed:", err)
		return
	}

	fmt.Println("title:", payload.Title)
	fmt.Println("content type:", req.ContentType().String())
	// Output:
	// title: hello
	// content type: application/json
}

func ExampleWithTrustedProxies() {
	httpReq := httptest.NewRequest("GET", "/api/notes", nil)
	httpReq.RemoteAddr = "10.0.0.1:9999"
	httpReq.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.2")

	req, err := xrequest.New(httpReq, xrequest.WithTrustedProxies("10.0.0.0/8"))
	if err != nil {
		fmt.Println("new failed:", err)
		return
	}

	fmt.Println("client ip:", req.ClientIP())
	// Output: client ip: 203.0.113.7
}
