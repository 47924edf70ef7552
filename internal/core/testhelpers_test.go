package core

import (
	"io"
	"log/slog"
	"testing"

	"billingsync/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "local",
		Server:      config.ServerConfig{Port: "8080", SiteURL: "https://app.test"},
		Auth:        config.AuthConfig{CookieName: "sb-access-token"},
		Security:    config.SecurityConfig{CorsAllowedOrigins: []string{"*"}},
		Build:       config.BuildInfo{Version: "test"},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(testConfig(), discardLogger())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}
