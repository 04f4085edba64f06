package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClipDropTextToImage(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/text-to-image/v1" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Fatalf("unexpected api key %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.FormValue("prompt"); got != "a red fox" {
			t.Fatalf("unexpected prompt %q", got)
		}
		w.Write(png)
	}))
	defer srv.Close()

	client := NewClipDropClient("test-key")
	client.BaseURL = srv.URL

	data, err := client.TextToImage(context.Background(), "a red fox")
	if err != nil {
		t.Fatalf("TextToImage: %v", err)
	}
	if string(data) != string(png) {
		t.Fatalf("unexpected image data %v", data)
	}
}

func TestClipDropTextToImageError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusPaymentRequired)
	}))
	defer srv.Close()

	client := NewClipDropClient("test-key")
	client.BaseURL = srv.URL

	if _, err := client.TextToImage(context.Background(), "a red fox"); err == nil {
		t.Fatalf("expected error for non-200 response")
	}
}

func TestClipDropTextToImageEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClipDropClient("test-key")
	client.BaseURL = srv.URL

	if _, err := client.TextToImage(context.Background(), "a red fox"); err == nil {
		t.Fatalf("expected error for empty image body")
	}
}
