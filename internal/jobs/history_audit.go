package jobs

import (
	"context"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/emrgen/revision/internal/metrics"
	"github.com/emrgen/revision/internal/model"
	"github.com/emrgen/revision/internal/store"
	"github.com/sirupsen/logrus"
)

// Violation describes a break of the history ordering rules in one scope.
type Violation struct {
	Scope         model.Scope
	VersionNumber int64
	Reason        string
}

// HistoryAuditTask walks every scope oldest first and reports versions whose
// number is not strictly increasing or whose creation time goes backwards.
type HistoryAuditTask struct {
	store    store.VersionStore
	metrics  *metrics.Metrics
	schedule string
}

func NewHistoryAuditTask(schedule string, store store.VersionStore, m *metrics.Metrics) *HistoryAuditTask {
	return &HistoryAuditTask{
		store:    store,
		metrics:  m,
		schedule: schedule,
	}
}

func (h *HistoryAuditTask) Name() string {
	return "history_audit"
}

func (h *HistoryAuditTask) Schedule() string {
	return h.schedule
}

func (h *HistoryAuditTask) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	violations, err := h.Audit(ctx)
	if err != nil {
		logrus.Errorf("history audit failed: %v", err)
		return
	}

	for _, v := range violations {
		h.metrics.AuditViolation()
		logrus.Errorf("history audit: %s version %d: %s", v.Scope, v.VersionNumber, v.Reason)
	}
}

// Audit checks all scopes and returns the violations found.
func (h *HistoryAuditTask) Audit(ctx context.Context) ([]Violation, error) {
	scopes, err := h.store.ListScopes(ctx)
	if err != nil {
		return nil, err
	}

	var violations []Violation
	for _, scope := range scopes {
		versions, err := h.store.ListVersionsAsc(ctx, scope)
		if err != nil {
			return nil, err
		}
		violations = append(violations, auditScope(scope, versions)...)
	}

	return violations, nil
}

func auditScope(scope model.Scope, versions []*model.Version) []Violation {
	var violations []Violation
	seen := mapset.NewThreadUnsafeSet[int64]()

	for i, v := range versions {
		if !seen.Add(v.VersionNumber) {
			violations = append(violations, Violation{scope, v.VersionNumber, "duplicate version number"})
			continue
		}
		if v.VersionNumber <= 0 {
			violations = append(violations, Violation{scope, v.VersionNumber, "version number is not positive"})
		}
		if v.FormID == "" && v.ScopeType != model.ScopeProposal || v.FormID != "" && v.ScopeType != model.ScopeForm {
			violations = append(violations, Violation{scope, v.VersionNumber, "scope type does not match form id"})
		}
		if i == 0 {
			continue
		}

		prev := versions[i-1]
		if v.VersionNumber <= prev.VersionNumber {
			violations = append(violations, Violation{scope, v.VersionNumber, "version number does not increase"})
		}
		if v.CreatedAt.Before(prev.CreatedAt) {
			violations = append(violations, Violation{scope, v.VersionNumber, "created before the previous version"})
		}
	}

	return violations
}
