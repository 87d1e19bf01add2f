package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestDownload_WritesFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("binary-content"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "bin", "survon")
	if err := Download(context.Background(), srv.Client(), srv.URL, dest, 0755); err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "binary-content" {
		t.Errorf("content = %q, want %q", data, "binary-content")
	}
	info, err := os.Stat(dest)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0755 {
		t.Errorf("mode = %v, want 0755", info.Mode().Perm())
	}
}

func TestDownload_ReplacesPreviousContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("new"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "asset")
	if err := os.WriteFile(dest, []byte("old-and-much-longer"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := Download(context.Background(), srv.Client(), srv.URL, dest, 0644); err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "new" {
		t.Errorf("content = %q, re-download must fully replace the file", data)
	}
}

func TestDownload_FailedRefetchKeepsPreviousArtifact(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "release missing", http.StatusNotFound)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "survon")
	if err := os.WriteFile(dest, []byte("last-good-binary"), 0755); err != nil {
		t.Fatal(err)
	}

	if err := Download(context.Background(), srv.Client(), srv.URL, dest, 0755); err == nil {
		t.Fatal("Download() should fail on 404")
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("previous artifact lost after failed re-fetch: %v", err)
	}
	if string(data) != "last-good-binary" {
		t.Errorf("content = %q, a failed re-fetch must not touch the previous artifact", data)
	}
}

func TestDownload_HTTPErrorLeavesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "missing")
	err := Download(context.Background(), srv.Client(), srv.URL, dest, 0644)
	if err == nil {
		t.Fatal("Download() should fail on 404")
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Error("no file should be left behind after a failed download")
	}
}

func TestDownload_EmptyBodyIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "empty")
	if err := Download(context.Background(), srv.Client(), srv.URL, dest, 0644); err == nil {
		t.Fatal("Download() should reject an empty body")
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Error("no file should be left behind after an empty download")
	}
}
