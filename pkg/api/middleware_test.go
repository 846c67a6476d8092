package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/respack/pkg/resource"
	"github.com/ssargent/respack/pkg/uid"
)

func TestAPIKeyMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sendSuccess(w, "ok")
	})

	cases := map[string]struct {
		key     string
		header  string
		status  int
		message string
	}{
		"accepted":       {key: "studio", header: "studio", status: http.StatusOK},
		"no header":      {key: "studio", status: http.StatusUnauthorized, message: "Missing X-API-Key header"},
		"wrong key":      {key: "studio", header: "guest", status: http.StatusUnauthorized, message: "Invalid API key"},
		"check disabled": {header: "anything", status: http.StatusOK},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/formats", nil)
			if tc.header != "" {
				req.Header.Set("X-API-Key", tc.header)
			}
			rec := httptest.NewRecorder()
			apiKeyMiddleware(tc.key)(ok).ServeHTTP(rec, req)

			require.Equal(t, tc.status, rec.Code)
			var response APIResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
			assert.Equal(t, tc.message, response.Error)
		})
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := requestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "http request", line["msg"])
	assert.Equal(t, "/api/v1/health", line["path"])
	assert.Equal(t, float64(http.StatusTeapot), line["status"])
}

func TestSendSuccess(t *testing.T) {
	w := httptest.NewRecorder()

	sendSuccess(w, map[string]string{"message": "test"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response APIResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.True(t, response.Success)
	assert.Equal(t, map[string]interface{}{"message": "test"}, response.Data)
}

func TestSendError(t *testing.T) {
	w := httptest.NewRecorder()

	sendError(w, "Invalid request", http.StatusBadRequest)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response APIResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.False(t, response.Success)
	assert.Equal(t, "Invalid request", response.Error)
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"unsupported", resource.Errorf("load", "a.txt", resource.ErrUnsupportedFormat, "nope"), http.StatusUnsupportedMediaType},
		{"missing file", resource.Wrap("load", "a.rtxt", resource.ErrOpenFileRead, fs.ErrNotExist), http.StatusNotFound},
		{"unregistered uid", fmt.Errorf("%w: uid://1", uid.ErrNotFound), http.StatusNotFound},
		{"corrupt header", resource.Wrap("load", "a.rbin", resource.ErrHeaderDeserialize, errors.New("short")), http.StatusUnprocessableEntity},
		{"unknown class", resource.Errorf("load", "a.rbin", resource.ErrUnknownClass, "Ghost"), http.StatusUnprocessableEntity},
		{
			"missing reference target",
			resource.Wrap("load", "a.rtxt", resource.ErrPayloadDecode,
				resource.Wrap("resolve", "b.rtxt", resource.ErrCannotLoad, fs.ErrNotExist)),
			http.StatusUnprocessableEntity,
		},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, errorStatus(tt.err))
		})
	}
}
