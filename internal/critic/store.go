package critic

import (
	"sync"

	"github.com/pkg/errors"

	"trading-botcore/internal/botconfig"
)

// ErrReportNotFound is returned for unknown report ids.
var ErrReportNotFound = errors.New("critic: report not found")

// ReportStore keeps the reports of every bot in creation order. Reports are
// copied in and out; MarkApplied is the only mutation.
type ReportStore struct {
	mu      sync.RWMutex
	reports map[string][]*Report // bot id → reports
}

// NewReportStore creates an empty store.
func NewReportStore() *ReportStore {
	return &ReportStore{reports: make(map[string][]*Report)}
}

// Add stores a copy of r.
func (s *ReportStore) Add(r *Report) {
	s.mu.Lock()
	s.reports[r.BotID] = append(s.reports[r.BotID], r.Clone())
	s.mu.Unlock()
}

// Get returns a copy of one report.
func (s *ReportStore) Get(botID, reportID string) (*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := s.find(botID, reportID)
	if r == nil {
		return nil, ErrReportNotFound
	}
	return r.Clone(), nil
}

// List returns copies of the most recent limit reports (limit <= 0 for all), oldest first.
func (s *ReportStore) List(botID string, limit int) []*Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rs := s.reports[botID]
	if limit > 0 && limit < len(rs) {
		rs = rs[len(rs)-limit:]
	}
	out := make([]*Report, len(rs))
	for i, r := range rs {
		out[i] = r.Clone()
	}
	return out
}

// MarkApplied flags the recommendation for p as applied and records newValue
// in AppliedChanges. It fails when the report has no such pending recommendation.
func (s *ReportStore) MarkApplied(botID, reportID string, p botconfig.Param, newValue float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.find(botID, reportID)
	if r == nil {
		return ErrReportNotFound
	}
	for i := range r.Recommendations {
		rc := &r.Recommendations[i]
		if rc.Parameter != p {
			continue
		}
		if rc.Applied {
			return errors.Errorf("critic: %s already applied in report %s", p, reportID)
		}
		rc.Applied = true
		applied := *rc
		applied.NewValue = newValue
		r.AppliedChanges = append(r.AppliedChanges, applied)
		return nil
	}
	return errors.Errorf("critic: report %s has no recommendation for %s", reportID, p)
}

func (s *ReportStore) find(botID, reportID string) *Report {
	for _, r := range s.reports[botID] {
		if r.ID == reportID {
			return r
		}
	}
	return nil
}
