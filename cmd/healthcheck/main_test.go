package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAddr(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "", want: "127.0.0.1:8080"},
		{raw: "garbage", want: "127.0.0.1:8080"},
		{raw: ":9000", want: "127.0.0.1:9000"},
		{raw: "0.0.0.0:9000", want: "127.0.0.1:9000"},
		{raw: "[::]:9000", want: "127.0.0.1:9000"},
		{raw: "10.0.0.5:9000", want: "10.0.0.5:9000"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeAddr(tt.raw))
		})
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "healthy", status: http.StatusOK, body: `{"status":"ok","time":"2026-01-01T00:00:00Z"}`},
		{name: "server error", status: http.StatusInternalServerError, body: `{}`, wantErr: "returned 500"},
		{name: "bad status", status: http.StatusOK, body: `{"status":"degraded"}`, wantErr: `health status is "degraded"`},
		{name: "not json", status: http.StatusOK, body: `ok`, wantErr: "decoding health response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v1/health", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := check(context.Background(), srv.Client(), strings.TrimPrefix(srv.URL, "http://"))
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
