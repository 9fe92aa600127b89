package reconciliation

import (
	"context"
	"errors"
	"sync"
)

// ErrReportNotFound indicates no report exists for the identifier.
var ErrReportNotFound = errors.New("reconciliation report not found")

// ReportStore persists reconciliation reports. Reports are written once by
// the job; Review is the only mutation and marks the human sign-off.
type ReportStore interface {
	Save(ctx context.Context, report Report) error
	Get(ctx context.Context, reportID string) (Report, error)
	Review(ctx context.Context, reportID, reviewedBy, notes string) (Report, error)
}

type memoryReportStore struct {
	mu      sync.Mutex
	reports map[string]Report
}

// NewMemoryReportStore constructs an in-memory report store for tests.
func NewMemoryReportStore() ReportStore {
	return &memoryReportStore{reports: make(map[string]Report)}
}

func (s *memoryReportStore) Save(_ context.Context, report Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report.ID] = report
	return nil
}

func (s *memoryReportStore) Get(_ context.Context, reportID string) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[reportID]
	if !ok {
		return Report{}, ErrReportNotFound
	}
	return r, nil
}

func (s *memoryReportStore) Review(_ context.Context, reportID, reviewedBy, notes string) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[reportID]
	if !ok {
		return Report{}, ErrReportNotFound
	}
	r.Status = StatusReviewed
	r.ReviewedBy = reviewedBy
	r.ReviewNotes = notes
	s.reports[reportID] = r
	return r, nil
}
