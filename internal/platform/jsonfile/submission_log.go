package jsonfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/alexfaker/autoGenVideo/internal/domain"
	"github.com/alexfaker/autoGenVideo/internal/store"
)

// submissionHeader is the CSV header row written when the log file is created.
var submissionHeader = []string{"task_id", "created_at", "prompt", "image_path", "status", "off_peak"}

// SubmissionLog is a file-backed store.SubmissionLog: one CSV row per created
// task, opened with O_APPEND so records are only ever added.
type SubmissionLog struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewSubmissionLog returns a submission log backed by the CSV file at path.
// The file is created lazily on first append.
func NewSubmissionLog(path string, logger *slog.Logger) (*SubmissionLog, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &SubmissionLog{
		path:   path,
		logger: logger.With("component", "submission_log"),
	}, nil
}

// Append writes one immutable record for a freshly created task.
func (s *SubmissionLog) Append(ctx context.Context, rec domain.SubmissionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("%w: create submission log dir: %v", store.ErrPersistence, err)
	}

	_, statErr := os.Stat(s.path)
	isNew := errors.Is(statErr, os.ErrNotExist)

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open submission log: %v", store.ErrPersistence, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if isNew {
		if err := w.Write(submissionHeader); err != nil {
			return fmt.Errorf("%w: write submission log header: %v", store.ErrPersistence, err)
		}
	}

	row := []string{
		rec.RemoteID,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		rec.Prompt,
		rec.ImagePath,
		string(rec.InitialStatus),
		strconv.FormatBool(rec.OffPeak),
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("%w: write submission record: %v", store.ErrPersistence, err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("%w: flush submission record: %v", store.ErrPersistence, err)
	}

	s.logger.Debug("submission record appended", "task_id", rec.RemoteID)
	return nil
}

// Records returns every submission record in append order. Rows that cannot
// be parsed are skipped with a warning instead of failing the read; the log
// is explicitly allowed to be hand-edited.
func (s *SubmissionLog) Records(ctx context.Context) ([]domain.SubmissionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open submission log: %v", store.ErrPersistence, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var records []domain.SubmissionRecord
	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read submission log: %v", store.ErrPersistence, err)
		}

		if first {
			first = false
			if len(row) > 0 && row[0] == submissionHeader[0] {
				continue
			}
		}

		rec, ok := s.parseRow(row)
		if !ok {
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}

// parseRow converts one CSV row into a submission record.
func (s *SubmissionLog) parseRow(row []string) (domain.SubmissionRecord, bool) {
	if len(row) < len(submissionHeader) || row[0] == "" {
		s.logger.Warn("skipping malformed submission row", "fields", len(row))
		return domain.SubmissionRecord{}, false
	}

	createdAt, err := time.Parse(time.RFC3339Nano, row[1])
	if err != nil {
		// Hand-edited timestamps may drop the fractional part.
		createdAt, err = time.Parse(time.RFC3339, row[1])
		if err != nil {
			s.logger.Warn("skipping submission row with bad timestamp", "task_id", row[0], "created_at", row[1])
			return domain.SubmissionRecord{}, false
		}
	}

	offPeak, _ := strconv.ParseBool(row[5])
	return domain.SubmissionRecord{
		RemoteID:      row[0],
		CreatedAt:     createdAt,
		Prompt:        row[2],
		ImagePath:     row[3],
		InitialStatus: domain.TaskStatus(row[4]),
		OffPeak:       offPeak,
	}, true
}

// Compile-time interface check.
var _ store.SubmissionLog = (*SubmissionLog)(nil)
