package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mwantia/assetd"
)

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()

	checkpoints := t.TempDir()
	output := t.TempDir()
	for name, content := range map[string]string{
		"a.safetensors": "aaaaaaaaaa",
		"b.safetensors": "bbbbb",
	} {
		if err := os.WriteFile(filepath.Join(checkpoints, name), []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}
	for _, name := range []string{"final.png", "temp_0001.png"} {
		if err := os.WriteFile(filepath.Join(output, name), []byte("png"), 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}

	store, err := assetd.New([]assetd.Root{
		{Name: "checkpoints", Base: checkpoints},
		{Name: "output", Base: output, Images: true},
	}, assetd.WithoutTerminalLog())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	ts := httptest.NewServer(NewServer(store, nil).Handler())
	t.Cleanup(ts.Close)

	return ts, checkpoints
}

func doRequest(t *testing.T, method, url string) (int, map[string]any) {
	t.Helper()

	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	return resp.StatusCode, body
}

func TestHandleListFolders(t *testing.T) {
	ts, _ := newTestServer(t)

	status, body := doRequest(t, http.MethodGet, ts.URL+"/api-tools/v1/models")
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}

	result := body["result"].(map[string]any)
	folders := result["folders"].([]any)
	if len(folders) != 2 || folders[0] != "checkpoints" || folders[1] != "output" {
		t.Errorf("Wrong folders: %v", folders)
	}
}

func TestHandleListModels(t *testing.T) {
	ts, _ := newTestServer(t)

	status, body := doRequest(t, http.MethodGet, ts.URL+"/api-tools/v1/models/checkpoints")
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}

	entries := body["result"].([]any)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}

	first := entries[0].(map[string]any)
	if first["name"] != "a.safetensors" || first["size_bytes"] != float64(10) {
		t.Errorf("Wrong first entry: %v", first)
	}
}

func TestHandleListModels_UnknownRoot(t *testing.T) {
	ts, _ := newTestServer(t)

	status, _ := doRequest(t, http.MethodGet, ts.URL+"/api-tools/v1/models/vae")
	if status != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", status)
	}
}

func TestHandleRefresh(t *testing.T) {
	ts, checkpoints := newTestServer(t)

	// Warm the cache, then create a file behind its back.
	doRequest(t, http.MethodGet, ts.URL+"/api-tools/v1/models/checkpoints")
	if err := os.WriteFile(filepath.Join(checkpoints, "c.safetensors"), []byte("c"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	status, body := doRequest(t, http.MethodPost, ts.URL+"/api-tools/v1/models/checkpoints/refresh")
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}

	entries := body["data"].([]any)
	if len(entries) != 3 {
		t.Errorf("Expected 3 entries after refresh, got %d", len(entries))
	}
}

func TestHandleDeleteModel(t *testing.T) {
	ts, checkpoints := newTestServer(t)

	status, _ := doRequest(t, http.MethodDelete, ts.URL+"/api-tools/v1/models/checkpoints/a.safetensors")
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}

	if _, err := os.Stat(filepath.Join(checkpoints, "a.safetensors")); !os.IsNotExist(err) {
		t.Error("File still on disk after delete")
	}

	// Listing no longer contains the deleted model.
	_, body := doRequest(t, http.MethodGet, ts.URL+"/api-tools/v1/models/checkpoints")
	entries := body["result"].([]any)
	if len(entries) != 1 {
		t.Errorf("Expected 1 entry after delete, got %d", len(entries))
	}

	// Repeated delete is NotFound.
	status, _ = doRequest(t, http.MethodDelete, ts.URL+"/api-tools/v1/models/checkpoints/a.safetensors")
	if status != http.StatusNotFound {
		t.Errorf("Expected 404 on repeat delete, got %d", status)
	}
}

func TestHandleDeleteModel_TraversalRejected(t *testing.T) {
	ts, _ := newTestServer(t)

	status, _ := doRequest(t, http.MethodDelete,
		ts.URL+"/api-tools/v1/models/checkpoints/..%2F..%2Fetc%2Fpasswd")
	if status != http.StatusBadRequest {
		t.Errorf("Expected 400 for traversal, got %d", status)
	}
}

func TestHandleListImages_TempFilter(t *testing.T) {
	ts, _ := newTestServer(t)

	status, body := doRequest(t, http.MethodGet, ts.URL+"/api-tools/v1/images/output?temp=true")
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	images := body["images"].([]any)
	if len(images) != 1 || images[0].(map[string]any)["name"] != "temp_0001.png" {
		t.Errorf("Wrong temp view: %v", images)
	}

	_, body = doRequest(t, http.MethodGet, ts.URL+"/api-tools/v1/images/output?temp=false")
	images = body["images"].([]any)
	if len(images) != 1 || images[0].(map[string]any)["name"] != "final.png" {
		t.Errorf("Wrong persistent view: %v", images)
	}

	_, body = doRequest(t, http.MethodGet, ts.URL+"/api-tools/v1/images/output")
	images = body["images"].([]any)
	if len(images) != 2 {
		t.Errorf("Expected full listing of 2, got %d", len(images))
	}
}

func TestHandleListImages_ModelRootRejected(t *testing.T) {
	ts, _ := newTestServer(t)

	status, _ := doRequest(t, http.MethodGet, ts.URL+"/api-tools/v1/images/checkpoints")
	if status != http.StatusNotFound {
		t.Errorf("Expected 404 for non-image root, got %d", status)
	}
}

func TestHandleDeleteImage_TempMismatch(t *testing.T) {
	ts, _ := newTestServer(t)

	status, _ := doRequest(t, http.MethodDelete,
		ts.URL+"/api-tools/v1/images/output/final.png?temp=true")
	if status != http.StatusNotFound {
		t.Errorf("Expected 404 for classification mismatch, got %d", status)
	}

	status, _ = doRequest(t, http.MethodDelete,
		ts.URL+"/api-tools/v1/images/output/temp_0001.png?temp=true")
	if status != http.StatusOK {
		t.Errorf("Expected 200 deleting matching image, got %d", status)
	}
}

func TestHandleInstall_Disabled(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api-tools/v1/models/install", "application/json",
		strings.NewReader(`{"url":"https://github.com/x","filename":"x"}`))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403 with installer disabled, got %d", resp.StatusCode)
	}
}

func TestHandleMetrics(t *testing.T) {
	ts, _ := newTestServer(t)

	// Generate some traffic first.
	doRequest(t, http.MethodGet, ts.URL+"/api-tools/v1/models/checkpoints")

	resp, err := http.Get(ts.URL + "/api-tools/v1/metrics")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain") {
		t.Errorf("Wrong content type: %s", resp.Header.Get("Content-Type"))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	text := string(raw)

	if !strings.Contains(text, "assetd_scan_total") {
		t.Errorf("Missing scan counter in exposition:\n%s", text)
	}
	if !strings.Contains(text, `assetd_requests_total{endpoint="list_models",outcome="ok"}`) {
		t.Errorf("Missing request counter in exposition:\n%s", text)
	}
}
