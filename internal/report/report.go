package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/template"
	"time"

	"github.com/FranksOps/tubescrape/internal/storage"
)

// QuerySummary aggregates the attempts made for one search query.
type QuerySummary struct {
	Query    string
	Attempts int
	Failures int
	// Videos is the result count of the most recent successful attempt.
	Videos      int
	LastOutcome storage.Outcome
	LastSeen    time.Time
}

// Summary contains aggregated metrics about recorded search attempts.
type Summary struct {
	TotalAttempts   int
	TotalFailures   int
	TotalDetections int
	TotalVideos     int
	Outcomes        map[storage.Outcome]int
	StatusCodes     map[int]int
	DetectionsBySrc map[string]int
	FetchTime       time.Duration
	Queries         []QuerySummary
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}

// GenerateSummary processes audit records into summary metrics. Records may
// arrive in any order.
func GenerateSummary(attempts []*storage.Attempt) Summary {
	s := Summary{
		Outcomes:        make(map[storage.Outcome]int),
		StatusCodes:     make(map[int]int),
		DetectionsBySrc: make(map[string]int),
	}

	if len(attempts) == 0 {
		return s
	}

	s.StartTime = attempts[0].CreatedAt
	s.EndTime = attempts[0].CreatedAt

	byQuery := make(map[string]*QuerySummary)
	for _, a := range attempts {
		s.TotalAttempts++
		s.Outcomes[a.Outcome]++
		if a.Outcome == storage.OutcomeError {
			s.TotalFailures++
		}
		if a.DetectedBot {
			s.TotalDetections++
			s.DetectionsBySrc[a.DetectionSrc]++
		}
		if a.StatusCode > 0 {
			s.StatusCodes[a.StatusCode]++
		}
		s.TotalVideos += a.Results
		s.FetchTime += a.Duration

		if a.CreatedAt.Before(s.StartTime) {
			s.StartTime = a.CreatedAt
		}
		if a.CreatedAt.After(s.EndTime) {
			s.EndTime = a.CreatedAt
		}

		q, ok := byQuery[a.Query]
		if !ok {
			q = &QuerySummary{Query: a.Query}
			byQuery[a.Query] = q
		}
		q.Attempts++
		if a.Outcome == storage.OutcomeError {
			q.Failures++
		}
		if !a.CreatedAt.Before(q.LastSeen) {
			q.LastSeen = a.CreatedAt
			q.LastOutcome = a.Outcome
			if a.Outcome != storage.OutcomeError {
				q.Videos = a.Results
			}
		}
	}

	for _, q := range byQuery {
		s.Queries = append(s.Queries, *q)
	}
	sort.Slice(s.Queries, func(i, j int) bool { return s.Queries[i].Query < s.Queries[j].Query })

	s.Duration = s.EndTime.Sub(s.StartTime)
	return s
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("report: encode json: %w", err)
	}
	return nil
}

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	const textTmpl = `Tubescrape Attempt Summary
--------------------------
Time:          {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Duration:      {{.Duration}}
Attempts:      {{.TotalAttempts}} ({{.TotalFailures}} failed)
Fetch Time:    {{.FetchTime}}
Videos:        {{.TotalVideos}}

Outcomes:
{{- range $outcome, $count := .Outcomes}}
  {{$outcome}}: {{$count}}
{{- else}}
  None
{{- end}}

Status Codes:
{{- range $code, $count := .StatusCodes}}
  {{$code}}: {{$count}}
{{- else}}
  None
{{- end}}

Detections: {{.TotalDetections}}
{{- range $src, $count := .DetectionsBySrc}}
  {{$src}}: {{$count}}
{{- else}}
  None
{{- end}}

Queries:
{{- range .Queries}}
  {{printf "%q" .Query}}: {{.Attempts}} attempts, {{.Failures}} failed, last {{.LastOutcome}} with {{.Videos}} videos
{{- else}}
  None
{{- end}}
`

	t, err := template.New("textReport").Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("report: parse template: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report: render text: %w", err)
	}

	return nil
}
