package preflight

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sessionq/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckHTTPAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/count" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{"count":0}`)
	}))
	defer srv.Close()

	bind := strings.TrimPrefix(srv.URL, "http://")
	if result := CheckHTTPAPI(context.Background(), bind); !result.Passed {
		t.Fatalf("expected pass, got %+v", result)
	}
	if result := CheckHTTPAPI(context.Background(), ""); result.Passed || result.Detail != "Disabled" {
		t.Fatalf("expected disabled result, got %+v", result)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	closedAddr := ln.Addr().String()
	ln.Close()
	if result := CheckHTTPAPI(context.Background(), closedAddr); result.Passed {
		t.Fatalf("expected failure for closed port, got %+v", result)
	}
}

func TestRunAllChecksConfiguredDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Journal.Path = filepath.Join(base, "journal", "journal.db")
	if err := os.MkdirAll(cfg.Paths.StateDir, 0o755); err != nil {
		t.Fatal(err)
	}

	results := RunAll(context.Background(), &cfg)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %+v", results)
	}
	failed := Failed(results)
	if len(failed) != 2 {
		t.Fatalf("expected log and journal dirs to fail, got %+v", failed)
	}

	cfg.Journal.Enabled = false
	if results := RunAll(context.Background(), &cfg); len(results) != 2 {
		t.Fatalf("expected journal check skipped, got %+v", results)
	}
}
