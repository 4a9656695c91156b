package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qwikask/qwikask/pkg/logger"
)

func ok(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func TestLocalOnly(t *testing.T) {
	h := LocalOnly(http.HandlerFunc(ok))

	tests := []struct {
		remote string
		want   int
	}{
		{"127.0.0.1:5555", http.StatusNoContent},
		{"[::1]:5555", http.StatusNoContent},
		{"192.168.1.4:5555", http.StatusForbidden},
		{"garbage", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestToken(t *testing.T) {
	open := Token("")(http.HandlerFunc(ok))
	rec := httptest.NewRecorder()
	open.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	guarded := Token("s3cret")(http.HandlerFunc(ok))
	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic s3cret", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "bearer s3cret", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			guarded.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestLoggingKeepsFlusherAndCorrelationID(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Logging(logger.NewNop()))
	r.Get("/feed", func(w http.ResponseWriter, r *http.Request) {
		_, isFlusher := w.(http.Flusher)
		assert.True(t, isFlusher)
		assert.Equal(t, "abc", GetCorrelationID(r.Context()))
		w.WriteHeader(http.StatusAccepted)
	})

	req := httptest.NewRequest(http.MethodGet, "/feed", nil)
	req.Header.Set("X-Correlation-ID", "abc")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "abc", rec.Header().Get("X-Correlation-ID"))
}

func TestValidation(t *testing.T) {
	assert.NoError(t, ValidateMessageContent("hi"))
	assert.Error(t, ValidateMessageContent("  \n"))
	assert.Error(t, ValidateMessageContent(strings.Repeat("a", maxContentBytes+1)))
	assert.Error(t, ValidateMessageContent("\xff"))

	assert.NoError(t, ValidateConversationID("0190b5f6-7c1e-7a5b-9d2e-3f4a5b6c7d8e"))
	assert.Error(t, ValidateConversationID("nope"))

	assert.NoError(t, ValidateTitle("Basic Arithmetic"))
	assert.Error(t, ValidateTitle(" "))
	assert.Error(t, ValidateTitle(strings.Repeat("é", maxTitleRunes+1)))
}
