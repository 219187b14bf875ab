package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultPruneSchedule runs orphan version pruning once an hour.
const DefaultPruneSchedule = "@every 1h"

// VersionPruner deletes version lists whose page no longer exists.
type VersionPruner interface {
	PruneOrphanVersions(ctx context.Context) ([]string, error)
}

// Maintenance runs periodic housekeeping on the page store.
type Maintenance struct {
	pruner   VersionPruner
	schedule string
	log      *zap.Logger
	cron     *cron.Cron
}

// NewMaintenance creates a Maintenance job. An empty schedule uses
// DefaultPruneSchedule.
func NewMaintenance(pruner VersionPruner, schedule string, log *zap.Logger) *Maintenance {
	if schedule == "" {
		schedule = DefaultPruneSchedule
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Maintenance{pruner: pruner, schedule: schedule, log: log}
}

// Start schedules the prune job.
func (m *Maintenance) Start() error {
	c := cron.New()
	_, err := c.AddFunc(m.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := m.RunOnce(ctx); err != nil {
			m.log.Warn("version prune failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", m.schedule, err)
	}
	c.Start()
	m.cron = c
	m.log.Info("maintenance scheduled", zap.String("schedule", m.schedule))
	return nil
}

// RunOnce prunes orphan version lists now and returns the affected page ids.
func (m *Maintenance) RunOnce(ctx context.Context) ([]string, error) {
	pruned, err := m.pruner.PruneOrphanVersions(ctx)
	if len(pruned) > 0 {
		m.log.Info("pruned orphan versions", zap.Strings("page_ids", pruned))
	}
	return pruned, err
}

// Stop halts the scheduler and waits for a running job to finish.
func (m *Maintenance) Stop() {
	if m.cron == nil {
		return
	}
	<-m.cron.Stop().Done()
	m.cron = nil
}
