package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/toeirei/keyfetch/internal/model"
)

func newTestNotifier(baseURL string) *NtfyNotifier {
	n := New(baseURL, "inbox", 2*time.Second)
	n.hostname = func() (string, error) { return "web-01", nil }
	n.now = func() time.Time { return time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC) }
	n.remark = func() string { return "The keyring grows." }
	return n
}

func TestSendPostsToTopic(t *testing.T) {
	var gotPath, gotTitle, gotPriority, gotTags, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotTitle = r.Header.Get("Title")
		gotPriority = r.Header.Get("Priority")
		gotTags = r.Header.Get("Tags")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
	}))
	defer srv.Close()

	n := newTestNotifier(srv.URL)
	err := n.Send(context.Background(), "toeirei", model.MergeResult{Added: 2, Skipped: 1, Total: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/inbox" {
		t.Errorf("path = %q, want /inbox", gotPath)
	}
	if gotTitle != "SSH keys provisioned for toeirei" {
		t.Errorf("unexpected Title header: %q", gotTitle)
	}
	if gotPriority != "default" || gotTags != "key,lock" {
		t.Errorf("unexpected metadata headers: priority=%q tags=%q", gotPriority, gotTags)
	}

	for _, want := range []string{
		"Account: toeirei",
		"New keys: 2 (skipped 1, total 3)",
		"Host: web-01",
		"Public IP: " + RedactedIP,
		"Time: 2026-03-14T15:09:26Z",
		"The keyring grows.",
	} {
		if !strings.Contains(gotBody, want) {
			t.Errorf("body missing %q:\n%s", want, gotBody)
		}
	}
}

func TestSendReportsEndpointErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	n := newTestNotifier(srv.URL)
	if err := n.Send(context.Background(), "toeirei", model.MergeResult{}); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestSendReportsTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	n := newTestNotifier(url)
	if err := n.Send(context.Background(), "toeirei", model.MergeResult{}); err == nil {
		t.Fatal("expected error for unreachable endpoint")
	}
}

func TestClosingRemarkComesFromPool(t *testing.T) {
	n := New("https://ntfy.example", "inbox", time.Second)
	remark := n.remark()
	found := false
	for _, r := range closingRemarks {
		if r == remark {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("remark %q not in pool", remark)
	}
}
