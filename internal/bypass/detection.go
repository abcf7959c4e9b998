package bypass

import (
	"bytes"
	"net/http"
	"net/url"
	"strings"

	"github.com/FranksOps/tubescrape/pkg/httpclient"
)

// Detection sources.
const (
	SourceConsent     = "ConsentWall"
	SourceSorry       = "GoogleSorry"
	SourceRateLimited = "RateLimited"
)

// Detector examines a response to determine if the site served a challenge,
// interstitial or throttle page instead of content.
type Detector func(res *httpclient.Response) (detected bool, source string)

// DefaultDetectors returns the detectors relevant to the video search page.
func DefaultDetectors() []Detector {
	return []Detector{
		detectRateLimit,
		detectSorry,
		detectConsent,
	}
}

// Analyze runs res through detectors and returns the first source that fires.
func Analyze(res *httpclient.Response, detectors []Detector) (bool, string) {
	if res == nil {
		return false, ""
	}
	for _, d := range detectors {
		if detected, source := d(res); detected {
			return true, source
		}
	}
	return false, ""
}

func finalHost(res *httpclient.Response) (string, string) {
	u, err := url.Parse(res.URL)
	if err != nil {
		return "", ""
	}
	return strings.ToLower(u.Hostname()), u.Path
}

// detectRateLimit flags 429s and 403s that carry throttle headers.
func detectRateLimit(res *httpclient.Response) (bool, string) {
	switch res.StatusCode {
	case http.StatusTooManyRequests:
		return true, SourceRateLimited
	case http.StatusForbidden:
		if res.Header.Get("Retry-After") != "" || res.Header.Get("X-RateLimit-Remaining") == "0" {
			return true, SourceRateLimited
		}
	}
	return false, ""
}

// detectSorry looks for Google's "unusual traffic" captcha interstitial.
func detectSorry(res *httpclient.Response) (bool, string) {
	host, path := finalHost(res)
	if strings.HasPrefix(path, "/sorry/") && (host == "www.google.com" || strings.HasSuffix(host, "youtube.com")) {
		return true, SourceSorry
	}
	if bytes.Contains(res.Body, []byte("Our systems have detected unusual traffic")) ||
		(bytes.Contains(res.Body, []byte("g-recaptcha")) && bytes.Contains(res.Body, []byte("/sorry/"))) {
		return true, SourceSorry
	}
	return false, ""
}

// detectConsent catches the EU cookie consent redirect, which answers 200 but
// carries no search results.
func detectConsent(res *httpclient.Response) (bool, string) {
	host, _ := finalHost(res)
	if host == "consent.youtube.com" || host == "consent.google.com" {
		return true, SourceConsent
	}
	if bytes.Contains(res.Body, []byte(`action="https://consent.youtube.com/save"`)) {
		return true, SourceConsent
	}
	return false, ""
}
