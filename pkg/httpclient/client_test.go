package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClient_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client, err := New(Config{Timeout: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := client.Get(context.Background(), ts.URL, nil); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestClient_Redirects(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/1":
			http.Redirect(w, r, "/2", http.StatusFound)
		case "/2":
			http.Redirect(w, r, "/3", http.StatusFound)
		case "/3":
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer ts.Close()

	client, err := New(Config{MaxRedirects: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := client.Get(context.Background(), ts.URL+"/1", nil); err == nil {
		t.Fatal("expected redirect limit error")
	}

	follow, _ := New(Config{MaxRedirects: 5})
	resp, err := follow.Get(context.Background(), ts.URL+"/1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(resp.URL, "/3") {
		t.Errorf("expected final URL to end in /3, got %s", resp.URL)
	}

	// No redirects: the 302 itself is a non-2xx response
	noRedir, _ := New(Config{MaxRedirects: -1})
	resp, err = noRedir.Get(context.Background(), ts.URL+"/1", nil)
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusFound {
		t.Fatalf("expected StatusError 302, got %v", err)
	}
	if resp == nil || resp.StatusCode != http.StatusFound {
		t.Errorf("expected response to be returned with the status error")
	}
}

func TestClient_Cookies(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/set":
			http.SetCookie(w, &http.Cookie{Name: "CONSENT", Value: "YES+"})
			w.WriteHeader(http.StatusOK)
		case "/check":
			c, err := r.Cookie("CONSENT")
			if err != nil || c.Value != "YES+" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer ts.Close()

	client, err := New(Config{UseCookieJar: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := client.Get(context.Background(), ts.URL+"/set", nil); err != nil {
		t.Fatalf("unexpected error on /set: %v", err)
	}
	if _, err := client.Get(context.Background(), ts.URL+"/check", nil); err != nil {
		t.Errorf("expected cookies to persist, got %v", err)
	}
}

func TestClient_HeadersAndBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept-Language") != "en-US" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte("0123456789"))
	}))
	defer ts.Close()

	client, _ := New(Config{MaxBodyBytes: 10})
	resp, err := client.Get(context.Background(), ts.URL, http.Header{"Accept-Language": {"en-US"}})
	if err != nil {
		t.Fatalf("body exactly at the limit must not fail: %v", err)
	}
	if string(resp.Body) != "0123456789" {
		t.Errorf("expected full body, got %q", resp.Body)
	}

	client, _ = New(Config{MaxBodyBytes: 4})
	resp, err = client.Get(context.Background(), ts.URL, http.Header{"Accept-Language": {"en-US"}})
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expected ErrBodyTooLarge, got %v", err)
	}
	if resp == nil || resp.StatusCode != http.StatusOK || string(resp.Body) != "0123" {
		t.Errorf("expected 200 with the first 4 bytes, got %+v", resp)
	}
}

func TestClient_Context(t *testing.T) {
	client, _ := New(Config{})

	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	_, err := client.Do(nil, req)
	if err == nil || err.Error() != "httpclient: context cannot be nil" {
		t.Errorf("expected nil context error, got %v", err)
	}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(1 * time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.Get(ctx, ts.URL, nil); err == nil {
		t.Fatal("expected cancellation error")
	}
}
