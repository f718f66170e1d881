package dataset

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/couchcryptid/shooting-data-etl/internal/domain"
)

// FileSource reads the dataset from a local CSV copy.
// It implements pipeline.Extractor.
type FileSource struct {
	path   string
	logger *slog.Logger
}

// NewFileSource creates an extractor over a local dataset file.
func NewFileSource(path string, logger *slog.Logger) *FileSource {
	return &FileSource{path: path, logger: logger}
}

// Extract opens and parses the whole file. The dataset is bounded (tens of
// thousands of rows), so wholesale loading is the intended mode.
func (s *FileSource) Extract(_ context.Context) ([]domain.RawRecord, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	records, err := ParseCSV(f)
	if err != nil {
		return nil, fmt.Errorf("parse dataset %s: %w", s.path, err)
	}

	s.logger.Info("dataset file read", "path", s.path, "rows", len(records))
	return records, nil
}

// HTTPSource downloads the dataset export over HTTP.
// It implements pipeline.Extractor.
type HTTPSource struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPSource creates an extractor that downloads the CSV export from url.
// The timeout bounds the whole download, not individual reads; the NYC Open
// Data export is a single large response.
func NewHTTPSource(url string, timeout time.Duration, logger *slog.Logger) *HTTPSource {
	return &HTTPSource{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Extract downloads and parses the export.
func (s *HTTPSource) Extract(ctx context.Context) ([]domain.RawRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download dataset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("dataset endpoint error: status %d: %s", resp.StatusCode, body)
	}

	records, err := ParseCSV(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse downloaded dataset: %w", err)
	}

	s.logger.Info("dataset downloaded", "url", s.url, "rows", len(records))
	return records, nil
}
