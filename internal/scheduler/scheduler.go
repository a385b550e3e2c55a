// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs the periodic maintenance jobs.
package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/olegiv/deptdocs/internal/middleware"
	"github.com/olegiv/deptdocs/internal/model"
	"github.com/olegiv/deptdocs/internal/service"
	"github.com/olegiv/deptdocs/internal/store"
)

// Job names.
const (
	JobMembershipRepair = "membership_repair"
	JobEventPruning     = "event_pruning"
	JobRateLimitPrune   = "rate_limit_prune"
)

// jobTimeout bounds a single run.
const jobTimeout = 5 * time.Minute

// maxTrackedClients is the limiter count above which the rate limiter
// state is dropped.
const maxTrackedClients = 10000

// Options configure the scheduler.
type Options struct {
	// EventRetention is how long audit events are kept. Zero disables pruning.
	EventRetention time.Duration
	// RateLimiter, when set, is pruned every ten minutes.
	RateLimiter *middleware.GlobalRateLimiter
}

// JobInfo is the public view of a registered job.
type JobInfo struct {
	Name     string
	Schedule string
	LastRun  time.Time
	NextRun  time.Time
	LastErr  error
}

type job struct {
	name     string
	schedule string
	entryID  cron.EntryID
	run      func(ctx context.Context) error
	lastRun  time.Time
	lastErr  error
}

// Scheduler handles the recurring maintenance jobs.
type Scheduler struct {
	db        *sql.DB
	events    *service.EventService
	dashboard *service.DashboardService
	opts      Options
	cron      *cron.Cron
	logger    *slog.Logger

	mu   sync.Mutex
	jobs map[string]*job
}

// New creates a new scheduler instance. dashboard may be nil.
func New(db *sql.DB, events *service.EventService, dashboard *service.DashboardService, opts Options, logger *slog.Logger) *Scheduler {
	cl := cronLogger{logger: logger}
	return &Scheduler{
		db:        db,
		events:    events,
		dashboard: dashboard,
		opts:      opts,
		cron:      cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		logger:    logger,
		jobs:      make(map[string]*job),
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if err := s.add(JobMembershipRepair, "@hourly", s.repairMemberships); err != nil {
		return err
	}
	if s.opts.EventRetention > 0 {
		if err := s.add(JobEventPruning, "@daily", s.pruneEvents); err != nil {
			return err
		}
	}
	if s.opts.RateLimiter != nil {
		if err := s.add(JobRateLimitPrune, "@every 10m", s.pruneRateLimiter); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
	return nil
}

// Stop gracefully stops the scheduler, waiting for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) add(name, schedule string, run func(ctx context.Context) error) error {
	j := &job{name: name, schedule: schedule, run: run}
	id, err := s.cron.AddFunc(schedule, func() { _ = s.execute(j) })
	if err != nil {
		return fmt.Errorf("scheduling %s: %w", name, err)
	}
	j.entryID = id

	s.mu.Lock()
	s.jobs[name] = j
	s.mu.Unlock()
	return nil
}

// Trigger runs a registered job immediately.
func (s *Scheduler) Trigger(name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return s.execute(j)
}

func (s *Scheduler) execute(j *job) error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	err := j.run(ctx)

	s.mu.Lock()
	j.lastRun = start
	j.lastErr = err
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("scheduled job failed", "job", j.name, "error", err)
		return err
	}
	s.logger.Debug("scheduled job finished", "job", j.name, "duration", time.Since(start))
	return nil
}

// Jobs lists the registered jobs sorted by name.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, JobInfo{
			Name:     j.name,
			Schedule: j.schedule,
			LastRun:  j.lastRun,
			NextRun:  s.cron.Entry(j.entryID).Next,
			LastErr:  j.lastErr,
		})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

// repairMemberships re-applies the membership rules to every profile.
func (s *Scheduler) repairMemberships(ctx context.Context) error {
	changed, err := store.RepairMemberships(ctx, s.db)
	if err != nil {
		return fmt.Errorf("repairing memberships: %w", err)
	}
	if changed == 0 {
		return nil
	}

	s.logger.Info("memberships repaired", "changed", changed)
	_ = s.events.LogSystemEvent(ctx, model.EventLevelInfo, "Memberships repaired", map[string]any{
		"changed": changed,
	})
	if s.dashboard != nil {
		s.dashboard.Invalidate(ctx)
	}
	return nil
}

func (s *Scheduler) pruneEvents(ctx context.Context) error {
	n, err := s.events.DeleteOldEvents(ctx, s.opts.EventRetention)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info("old events pruned", "deleted", n, "retention", s.opts.EventRetention)
	}
	return nil
}

func (s *Scheduler) pruneRateLimiter(context.Context) error {
	s.opts.RateLimiter.Prune(maxTrackedClients)
	return nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
