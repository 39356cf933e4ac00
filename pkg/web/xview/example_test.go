package xview_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/omeyang/apikit/pkg/web/xerror"
	"github.com/omeyang/apikit/pkg/web/xrender"
	"github.com/omeyang/apikit/pkg/web/xrequest"
	"github.com/omeyang/apikit/pkg/web/xview"
)

func ExampleNew() {
	v := xview.New(
		xview.WithName("note-detail"),
		xview.WithGet(func(r *xrequest.Request) (*xrender.Response, error) {
			return xrender.OK(map[string]string{"title": "hello"}), nil
		}),
		xview.WithDelete(func(r *xrequest.Request) (*xrender.Response, error) {
			return nil, xerror.NewPermissionDenied()
		}),
	)

	rec := httptest.NewRecorder()
	v.ServeHTTP(rec, httptest.NewRequest("GET", "/api/notes/1", nil))
	fmt.Println(rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	v.ServeHTTP(rec, httptest.NewRequest("DELETE", "/api/notes/1", nil))
	fmt.Println(rec.Code, rec.Body.String())

	// Output:
	// 200 {"title":"hello"}
	// 403 {"code":"permission_denied","detail":"You do not have permission to perform this action."}
}

func ExampleView_AllowedMethods() {
	v := xview.New(
		xview.WithGet(func(r *xrequest.Request) (*xrender.Response, error) {
			return xrender.OK(nil), nil
		}),
		xview.WithPost(func(r *xrequest.Request) (*xrender.Response, error) {
			return xrender.Created(nil), nil
		}),
	)

	fmt.Println(v.AllowedMethods())
	fmt.Println(http.MethodHead, "served by the", http.MethodGet, "handler")

	// Output:
	// [GET HEAD OPTIONS POST]
	// HEAD served by the GET handler
}
