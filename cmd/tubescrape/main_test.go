package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FranksOps/tubescrape/internal/pipeline"
	"github.com/FranksOps/tubescrape/internal/report"
	"github.com/FranksOps/tubescrape/internal/youtube"
)

const fixturePage = `<html><body><script>var ytInitialData = {"contents":{"twoColumnSearchResultsRenderer":{"primaryContents":{"sectionListRenderer":{"contents":[{"itemSectionRenderer":{"contents":[{"videoRenderer":{"videoId":"abc123","title":{"runs":[{"text":"Foo"}]},"thumbnail":{"thumbnails":[{"url":"http://t/0.jpg"}]}}}]}}]}}}}};</script></body></html>`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func fixtureServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("search_query") == "broken" {
			_, _ = w.Write([]byte("<html></html>"))
			return
		}
		_, _ = w.Write([]byte(fixturePage))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestWatchCmd(t *testing.T) {
	out, err := run(t, "watch", "abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "https://www.youtube.com/watch?v=abc123\n" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestSearchAndReport(t *testing.T) {
	ts := fixtureServer(t)
	auditLog := filepath.Join(t.TempDir(), "attempts.jsonl")
	common := []string{
		"--base-url", ts.URL + "/results",
		"--fingerprint", "go",
		"--retry-wait", "1ms",
		"--attempts", "2",
		"--storage-driver", "json",
		"--storage-dsn", auditLog,
		"--log-level", "error",
	}

	out, err := run(t, append([]string{"search", "lo-fi", "beats", "--json"}, common...)...)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	var videos []youtube.SearchResult
	if err := json.Unmarshal([]byte(out), &videos); err != nil {
		t.Fatalf("invalid search output %q: %v", out, err)
	}
	if len(videos) != 1 || videos[0].VideoID != "abc123" || videos[0].Title != "Foo" {
		t.Errorf("unexpected videos %+v", videos)
	}

	if _, err := run(t, append([]string{"search", "broken"}, common...)...); err != nil {
		t.Fatalf("exhausted search must not fail the command: %v", err)
	}

	out, err = run(t, append([]string{"report", "--format", "json"}, common...)...)
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	var summary report.Summary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("invalid report output %q: %v", out, err)
	}
	// one success plus two failed attempts for "broken"
	if summary.TotalAttempts != 3 || summary.TotalFailures != 2 || summary.TotalVideos != 1 {
		t.Errorf("unexpected summary %+v", summary)
	}
}

func TestSearchTable(t *testing.T) {
	ts := fixtureServer(t)

	out, err := run(t, "search", "foo", "--base-url", ts.URL+"/results", "--fingerprint", "go", "--log-level", "error")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if !strings.Contains(out, "VIDEO ID") || !strings.Contains(out, "abc123") || !strings.Contains(out, "http://t/0.jpg") {
		t.Errorf("unexpected table %q", out)
	}
}

func TestBatchCmd(t *testing.T) {
	ts := fixtureServer(t)
	queries := filepath.Join(t.TempDir(), "queries.txt")
	if err := os.WriteFile(queries, []byte("# comment\nfoo\n\nbar\n"), 0o644); err != nil {
		t.Fatalf("write queries: %v", err)
	}

	out, err := run(t, "batch", "baz", "-f", queries, "--json", "--concurrency", "2",
		"--base-url", ts.URL+"/results", "--fingerprint", "go", "--log-level", "error")
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	var results []pipeline.Result
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("invalid batch output %q: %v", out, err)
	}
	if len(results) != 3 || results[0].Query != "baz" || results[2].Query != "bar" {
		t.Fatalf("unexpected results %+v", results)
	}
	for _, r := range results {
		if len(r.Videos) != 1 {
			t.Errorf("query %q: expected 1 video, got %d", r.Query, len(r.Videos))
		}
	}
}

func TestBatchCmd_NoQueries(t *testing.T) {
	if _, err := run(t, "batch"); err == nil {
		t.Fatal("expected error without queries")
	}
}

func TestReportCmd_NeedsStorage(t *testing.T) {
	if _, err := run(t, "report"); err == nil {
		t.Fatal("expected error without storage")
	}
}

func TestInvalidConfig(t *testing.T) {
	if _, err := run(t, "watch", "x", "--fingerprint", "netscape"); err == nil {
		t.Fatal("expected config validation error")
	}
}

func TestSearchAndReport_CSV(t *testing.T) {
	ts := fixtureServer(t)
	auditLog := filepath.Join(t.TempDir(), "attempts.csv")
	common := []string{
		"--base-url", ts.URL + "/results",
		"--fingerprint", "go",
		"--storage-driver", "csv",
		"--storage-dsn", auditLog,
		"--log-level", "error",
	}

	if _, err := run(t, append([]string{"search", "lo-fi"}, common...)...); err != nil {
		t.Fatalf("search failed: %v", err)
	}

	out, err := run(t, append([]string{"report", "--format", "json"}, common...)...)
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	var summary report.Summary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("invalid report output %q: %v", out, err)
	}
	if summary.TotalAttempts != 1 || summary.TotalFailures != 0 || summary.TotalVideos != 1 {
		t.Errorf("unexpected summary %+v", summary)
	}
}

func TestZeroRetryWaitRejected(t *testing.T) {
	_, err := run(t, "watch", "x", "--retry-wait", "0s")
	if err == nil || !strings.Contains(err.Error(), "retry_wait") {
		t.Fatalf("expected retry_wait validation error, got %v", err)
	}
}
