package xperm_test

import (
	"errors"
	"fmt"
	"net/http/httptest"

	"github.com/omeyang/apikit/pkg/context/xctx"
	"github.com/omeyang/apikit/pkg/web/xerror"
	"github.com/omeyang/apikit/pkg/web/xperm"
	"github.com/omeyang/apikit/pkg/web/xrequest"
)

func ExampleCheck() {
	httpReq := httptest.NewRequest("DELETE", "/api/notes/1", nil)
	req, _ := xrequest.New(httpReq)

	err := xperm.Check(req, []xperm.Permission{xperm.IsAuthenticatedOrReadOnly{}})

	var apiErr *xerror.APIError
	if errors.As(err, &apiErr) {
		fmt.Println(apiErr.Status, apiErr.Detail)
	}
	// Output: 403 You do not have permission to perform this action.
}

func ExampleOr() {
	httpReq := httptest.NewRequest("POST", "/api/notes", nil)
	req, _ := xrequest.New(httpReq, xrequest.WithAuthenticators(grantAuthenticator{
		principal: &xctx.Principal{ID: "u1", Name: "alice", Scopes: []string{"notes:write"}},
	}))

	perm := xperm.Or(xperm.IsAdmin{}, xperm.HasScope("notes:write"))
	fmt.Println("allowed:", perm.HasPermission(req))
	// Output: allowed: true
}
