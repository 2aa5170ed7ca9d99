package page

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const loaderPage = `<html><body><div data-config="4/news"></div></body></html>`

func TestDefaultLoaderConfig(t *testing.T) {
	config := DefaultLoaderConfig()
	if config.Timeout <= 0 {
		t.Errorf("DefaultLoaderConfig().Timeout = %v", config.Timeout)
	}
	if config.Stdin == nil {
		t.Errorf("DefaultLoaderConfig().Stdin should default to os.Stdin")
	}
}

func TestLoad(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/page.html" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(loaderPage))
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "page.html")
	if err := os.WriteFile(path, []byte(loaderPage), 0o644); err != nil {
		t.Fatalf("failed to write page: %v", err)
	}

	tests := []struct {
		name    string
		source  string
		config  *LoaderConfig
		wantErr bool
	}{
		{name: "local file", source: path},
		{name: "remote url", source: server.URL + "/page.html"},
		{name: "stdin", source: Stdin, config: &LoaderConfig{Stdin: strings.NewReader(loaderPage)}},
		{name: "missing file", source: filepath.Join(t.TempDir(), "missing.html"), wantErr: true},
		{name: "remote 404", source: server.URL + "/missing", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Load(context.Background(), tt.source, tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			containers := doc.Containers()
			if len(containers) != 1 {
				t.Fatalf("Containers() = %d, want 1", len(containers))
			}
			if config, ok := containers[0].Config(); !ok || config != "4/news" {
				t.Errorf("Config() = %q, %v", config, ok)
			}
		})
	}
}
