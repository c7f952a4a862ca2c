package integration

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
)

// writeScript installs an executable shell script named name in dir.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

// getJSON fetches url, checks the status code and decodes the body into v.
func getJSON(t *testing.T, url string, wantStatus int, v interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s: expected status %d, got %d", url, wantStatus, resp.StatusCode)
	}
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("GET %s: decode failed: %v", url, err)
		}
	}
	return resp
}
