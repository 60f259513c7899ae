package jobs

import (
	"context"
	"time"

	"github.com/emrgen/revision/internal/model"
	"github.com/emrgen/revision/internal/store"
	"github.com/sirupsen/logrus"
)

// StatsRefresher recomputes and caches the stats of a proposal.
type StatsRefresher interface {
	RefreshStats(ctx context.Context, proposalID string) (*model.VersionStats, error)
}

// StatsWarmTask recomputes the cached stats of every proposal that received
// versions since the previous run, so the history panel rarely pays for the
// aggregate query.
type StatsWarmTask struct {
	store    store.VersionStore
	stats    StatsRefresher
	schedule string
	lastRun  time.Time
	now      func() time.Time
}

func NewStatsWarmTask(schedule string, store store.VersionStore, stats StatsRefresher) *StatsWarmTask {
	return &StatsWarmTask{
		store:    store,
		stats:    stats,
		schedule: schedule,
		now:      time.Now,
	}
}

func (s *StatsWarmTask) Name() string {
	return "stats_warm"
}

func (s *StatsWarmTask) Schedule() string {
	return s.schedule
}

func (s *StatsWarmTask) Run() {
	started := s.now()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	ids, err := s.store.ListProposalsChangedSince(ctx, s.lastRun)
	if err != nil {
		logrus.Errorf("stats warm-up: error listing changed proposals: %v", err)
		return
	}

	for _, id := range ids {
		if _, err := s.stats.RefreshStats(ctx, id); err != nil {
			logrus.Errorf("stats warm-up: error refreshing proposal %s: %v", id, err)
			return
		}
	}

	logrus.Debugf("stats warm-up refreshed %d proposals", len(ids))
	s.lastRun = started
}
