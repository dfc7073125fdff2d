package artifact

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/auctionfi/auctionpay"
)

func TestWebStorePut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/upload" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Error("missing bearer token")
		}
		json.NewEncoder(w).Encode(map[string]string{"cid": "bafy-uploaded"})
	}))
	defer server.Close()

	store := NewWebStore(server.URL, "secret")
	handle, err := store.Put(context.Background(), []auctionpay.ArtifactFile{
		{Name: ItemFileName, Content: []byte(`{}`)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if handle != "bafy-uploaded" {
		t.Fatalf("unexpected handle %q", handle)
	}
}

func TestWebStorePutEmpty(t *testing.T) {
	store := NewWebStore("http://unused", "secret")
	if _, err := store.Put(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty upload")
	}
}

func TestWebStoreStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/status/bafy-known":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	store := NewWebStore(server.URL, "secret")

	pinned, err := store.Status(context.Background(), "bafy-known")
	if err != nil || !pinned {
		t.Fatalf("expected pinned handle, got %v/%v", pinned, err)
	}
	pinned, err = store.Status(context.Background(), "bafy-unknown")
	if err != nil || pinned {
		t.Fatalf("expected unpinned handle, got %v/%v", pinned, err)
	}
}

func TestWebStoreGet(t *testing.T) {
	content := []byte(`{"product_name":"amp"}`)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ipfs/bafy-item/"+ItemFileName {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write(content)
	}))
	defer server.Close()

	store := NewWebStore(server.URL, "secret", WithGateway(server.URL))

	files, err := store.Get(context.Background(), "bafy-item")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 1 || string(files[0].Content) != string(content) {
		t.Fatalf("unexpected files %+v", files)
	}

	if _, err := store.Get(context.Background(), "bafy-missing"); err == nil {
		t.Fatal("expected error for unresolvable handle")
	}
}
