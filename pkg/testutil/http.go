// Package testutil holds helpers shared by the handler and router suites.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "identity-recon/pkg/domain-errors"
	"identity-recon/pkg/platform/httputil"
)

// NewJSONRequest builds a request carrying body as JSON. A nil body sends no
// payload but keeps the JSON content type, which the contact routes require.
func NewJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()

	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err, "marshal request body")
		payload = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DoRequest runs req through handler.
func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// ServeJSON is NewJSONRequest followed by DoRequest.
func ServeJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return DoRequest(handler, NewJSONRequest(t, method, path, body))
}

// UnmarshalResponse decodes a JSON response body into T.
func UnmarshalResponse[T any](t *testing.T, rr *httptest.ResponseRecorder) *T {
	t.Helper()
	requireJSON(t, rr)
	var result T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result), "decode response: %s", rr.Body.String())
	return &result
}

// AssertStatus compares the status code and prints the body on mismatch.
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	assert.Equal(t, expected, rr.Code, "unexpected status code: %s", rr.Body.String())
}

// AssertStatusAndError checks the status and the error envelope. Server-side
// failures must not carry a description.
func AssertStatusAndError(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus int, expectedCode dErrors.Code) {
	t.Helper()
	AssertStatus(t, rr, expectedStatus)
	body := UnmarshalResponse[httputil.ErrorResponse](t, rr)
	assert.Equal(t, string(expectedCode), body.Error, "unexpected error code")
	if expectedStatus >= http.StatusInternalServerError {
		assert.Empty(t, body.ErrorDescription, "server errors must not describe their cause")
	}
}

func requireJSON(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()
	require.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json"),
		"expected a JSON response, got %q", rr.Header().Get("Content-Type"))
}
