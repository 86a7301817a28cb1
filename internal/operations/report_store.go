package operations

import (
	"fmt"
	"sync"
)

// ReportStore keeps finished run reports
type ReportStore interface {
	Save(report *RunReport) error
	Get(id string) (*RunReport, error)
	// List returns up to limit reports, newest first. limit <= 0 means all.
	List(limit int) []*RunReport
}

// MemoryReportStore is an in-memory ReportStore holding the most recent
// capacity reports
type MemoryReportStore struct {
	mu       sync.RWMutex
	capacity int
	reports  map[string]*RunReport
	order    []string // oldest first
}

// NewMemoryReportStore creates a store that evicts the oldest report once
// capacity is reached. capacity < 1 is treated as 1.
func NewMemoryReportStore(capacity int) *MemoryReportStore {
	if capacity < 1 {
		capacity = 1
	}
	return &MemoryReportStore{
		capacity: capacity,
		reports:  make(map[string]*RunReport),
	}
}

// Save stores a copy of report, replacing an earlier report with the same ID
func (s *MemoryReportStore) Save(report *RunReport) error {
	if report == nil || report.ID == "" {
		return fmt.Errorf("report must have an id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reports[report.ID]; !exists {
		s.order = append(s.order, report.ID)
	}
	s.reports[report.ID] = report.clone()

	for len(s.order) > s.capacity {
		delete(s.reports, s.order[0])
		s.order = s.order[1:]
	}
	return nil
}

// Get retrieves a copy of a report by ID
func (s *MemoryReportStore) Get(id string) (*RunReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, exists := s.reports[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, id)
	}
	return report.clone(), nil
}

// List returns copies of the stored reports, newest first
func (s *MemoryReportStore) List(limit int) []*RunReport {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.order)
	if limit > 0 && limit < n {
		n = limit
	}
	result := make([]*RunReport, 0, n)
	for i := len(s.order) - 1; i >= 0 && len(result) < n; i-- {
		result = append(result, s.reports[s.order[i]].clone())
	}
	return result
}
