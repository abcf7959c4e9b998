package bypass

import (
	"net/http"
	"testing"

	"github.com/FranksOps/tubescrape/pkg/httpclient"
)

func TestDetectRateLimit(t *testing.T) {
	res := &httpclient.Response{StatusCode: 200, Header: http.Header{}}
	if detected, _ := detectRateLimit(res); detected {
		t.Errorf("expected not detected")
	}

	res = &httpclient.Response{StatusCode: 429, Header: http.Header{}}
	if detected, src := detectRateLimit(res); !detected || src != SourceRateLimited {
		t.Errorf("expected 429 to be detected")
	}

	res = &httpclient.Response{StatusCode: 403, Header: http.Header{"Retry-After": {"30"}}}
	if detected, src := detectRateLimit(res); !detected || src != SourceRateLimited {
		t.Errorf("expected 403 with Retry-After to be detected")
	}

	res = &httpclient.Response{StatusCode: 403, Header: http.Header{}}
	if detected, _ := detectRateLimit(res); detected {
		t.Errorf("expected plain 403 not to be detected")
	}
}

func TestDetectSorry(t *testing.T) {
	res := &httpclient.Response{
		StatusCode: 200,
		URL:        "https://www.google.com/sorry/index?continue=https://www.youtube.com/results",
		Header:     http.Header{},
	}
	if detected, src := detectSorry(res); !detected || src != SourceSorry {
		t.Errorf("expected sorry redirect to be detected")
	}

	res = &httpclient.Response{
		StatusCode: 200,
		URL:        "https://www.youtube.com/results?search_query=x",
		Body:       []byte("<p>Our systems have detected unusual traffic from your computer network.</p>"),
	}
	if detected, src := detectSorry(res); !detected || src != SourceSorry {
		t.Errorf("expected sorry body to be detected")
	}

	res = &httpclient.Response{
		StatusCode: 200,
		URL:        "https://www.youtube.com/results?search_query=sorry",
		Body:       []byte("<script>var ytInitialData = {};</script>"),
	}
	if detected, _ := detectSorry(res); detected {
		t.Errorf("expected normal results page not to be detected")
	}
}

func TestDetectConsent(t *testing.T) {
	res := &httpclient.Response{StatusCode: 200, URL: "https://consent.youtube.com/m?continue=x"}
	if detected, src := detectConsent(res); !detected || src != SourceConsent {
		t.Errorf("expected consent host to be detected")
	}

	res = &httpclient.Response{
		StatusCode: 200,
		URL:        "https://www.youtube.com/results",
		Body:       []byte(`<form action="https://consent.youtube.com/save" method="POST">`),
	}
	if detected, src := detectConsent(res); !detected || src != SourceConsent {
		t.Errorf("expected consent form to be detected")
	}
}

func TestAnalyze(t *testing.T) {
	if detected, _ := Analyze(nil, DefaultDetectors()); detected {
		t.Error("nil response should not be detected")
	}

	res := &httpclient.Response{StatusCode: 429, URL: "https://consent.youtube.com/"}
	detected, src := Analyze(res, DefaultDetectors())
	if !detected || src != SourceRateLimited {
		t.Errorf("expected rate limit to win by order, got %v %q", detected, src)
	}

	res = &httpclient.Response{StatusCode: 200, URL: "https://www.youtube.com/results", Header: http.Header{}}
	if detected, src := Analyze(res, DefaultDetectors()); detected {
		t.Errorf("expected clean page, got %q", src)
	}
}
