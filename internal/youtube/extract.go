package youtube

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoInitialData means no script on the page assigns ytInitialData.
var ErrNoInitialData = errors.New("youtube: ytInitialData not found")

// Extractor pulls the ytInitialData JSON literal out of a search page.
type Extractor interface {
	Extract(html []byte) (string, error)
}

// initialDataPattern is greedy up to the last semicolon on the line, which is
// the end of the assignment in every layout we have seen.
var initialDataPattern = regexp.MustCompile(`(window\["ytInitialData"]|var ytInitialData)\s*=\s*(.*);`)

// ScriptExtractor scans the outer HTML of every <script> element, joined with
// newlines, for the ytInitialData assignment.
type ScriptExtractor struct{}

func (ScriptExtractor) Extract(html []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("youtube: parse html: %w", err)
	}

	scripts := make([]string, 0, doc.Find("script").Length())
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if h, err := goquery.OuterHtml(s); err == nil {
			scripts = append(scripts, h)
		}
	})

	m := initialDataPattern.FindStringSubmatch(strings.Join(scripts, "\n"))
	if m == nil {
		return "", ErrNoInitialData
	}
	return m[2], nil
}
