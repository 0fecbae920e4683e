package s3

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"protected-docs/internal/shared/storage/object"
)

type recordedRequest struct {
	method string
	path   string
	auth   string
}

func TestNewClientTargetsCustomEndpointWithStaticKeys(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []recordedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, recordedRequest{method: r.Method, path: r.URL.Path, auth: r.Header.Get("Authorization")})
		mu.Unlock()

		if r.URL.Path == "/docs-bucket/protected/missing.pdf" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", "5")
		w.Header().Set("Last-Modified", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC).Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewClient(context.Background(), ClientConfig{
		Region:          "eu-west-1",
		Endpoint:        srv.URL,
		AccessKeyID:     "AKID",
		SecretAccessKey: "SECRET",
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	store := NewWithClient(client, "docs-bucket", "protected", "")

	info, err := store.Stat(context.Background(), "minutes.pdf")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.SizeBytes != 5 || info.Key != "minutes.pdf" {
		t.Fatalf("unexpected info %+v", info)
	}

	if _, err := store.Stat(context.Background(), "missing.pdf"); !errors.Is(err, object.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(seen))
	}
	first := seen[0]
	if first.method != http.MethodHead || first.path != "/docs-bucket/protected/minutes.pdf" {
		t.Fatalf("expected path-style HEAD, got %s %s", first.method, first.path)
	}
	if !strings.Contains(first.auth, "Credential=AKID/") || !strings.Contains(first.auth, "/eu-west-1/s3/") {
		t.Fatalf("expected request signed with static key in eu-west-1, got %q", first.auth)
	}
}
