package csvbackend

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/FranksOps/tubescrape/internal/storage"
)

// ensure csvBackend implements storage.Backend
var _ storage.Backend = (*csvBackend)(nil)

type csvBackend struct {
	mu   sync.Mutex
	file *os.File
}

// headers defines the CSV column order
var headers = []string{
	"id",
	"query",
	"url",
	"attempt",
	"status_code",
	"duration_ms",
	"results",
	"detected_bot",
	"detection_src",
	"outcome",
	"created_at",
	"error",
}

// New creates a CSV-backed storage.Backend appending to filePath. A header
// row is written when the file is new.
func New(filePath string) (storage.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("csvbackend: open: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("csvbackend: stat: %w", err)
	}

	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(headers); err != nil {
			f.Close()
			return nil, fmt.Errorf("csvbackend: write header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("csvbackend: write header: %w", err)
		}
	}

	return &csvBackend{file: f}, nil
}

func (b *csvBackend) Save(ctx context.Context, a *storage.Attempt) error {
	record := []string{
		a.ID,
		a.Query,
		a.URL,
		strconv.Itoa(a.Seq),
		strconv.Itoa(a.StatusCode),
		strconv.FormatInt(a.Duration.Milliseconds(), 10),
		strconv.Itoa(a.Results),
		strconv.FormatBool(a.DetectedBot),
		a.DetectionSrc,
		string(a.Outcome),
		a.CreatedAt.UTC().Format(time.RFC3339Nano),
		a.Error,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("csvbackend: seek: %w", err)
	}

	w := csv.NewWriter(b.file)
	if err := w.Write(record); err != nil {
		return fmt.Errorf("csvbackend: write: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("csvbackend: write: %w", err)
	}
	return nil
}

func (b *csvBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Attempt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("csvbackend: seek: %w", err)
	}
	defer func() {
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	r := csv.NewReader(b.file)
	r.FieldsPerRecord = -1

	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return []*storage.Attempt{}, nil
		}
		return nil, fmt.Errorf("csvbackend: read header: %w", err)
	}

	var matched []*storage.Attempt
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csvbackend: read: %w", err)
		}
		if len(record) != len(headers) {
			continue // skip malformed rows
		}

		a := parseRecord(record)
		if filter.Query != "" && a.Query != filter.Query {
			continue
		}
		if filter.Outcome != "" && a.Outcome != filter.Outcome {
			continue
		}
		if filter.Since != nil && a.CreatedAt.Before(*filter.Since) {
			continue
		}
		matched = append(matched, a)
	}

	// newest first; ties keep reverse file order
	slices.Reverse(matched)
	slices.SortStableFunc(matched, func(x, y *storage.Attempt) int {
		return y.CreatedAt.Compare(x.CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []*storage.Attempt{}, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func parseRecord(record []string) *storage.Attempt {
	seq, _ := strconv.Atoi(record[3])
	statusCode, _ := strconv.Atoi(record[4])
	durationMs, _ := strconv.ParseInt(record[5], 10, 64)
	results, _ := strconv.Atoi(record[6])
	detectedBot, _ := strconv.ParseBool(record[7])
	createdAt, _ := time.Parse(time.RFC3339Nano, record[10])

	return &storage.Attempt{
		ID:           record[0],
		Query:        record[1],
		URL:          record[2],
		Seq:          seq,
		StatusCode:   statusCode,
		Duration:     time.Duration(durationMs) * time.Millisecond,
		Results:      results,
		DetectedBot:  detectedBot,
		DetectionSrc: record[8],
		Outcome:      storage.Outcome(record[9]),
		CreatedAt:    createdAt,
		Error:        record[11],
	}
}

func (b *csvBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
