// Copyright (c) 2026 Inkwell. All rights reserved.

/*
Package scheduler arms cron triggers for the periodic tasks.

The task set is declared in code; each task's effective interval comes
from the settings service and any change to a task interval key rebuilds
every trigger. The scheduler runs on the coordinator process only.
*/
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/nhatvu/inkwell/internal/settings"
)

// Task ids double as the middle segment of their interval setting key.
const (
	TaskScan    = "scan"
	TaskBackup  = "backup"
	TaskCleanup = "cleanup"
)

// Task is one periodic job: its id, the hour of day it prefers, and the
// callback. Callbacks receive a fresh context and must manage their own
// database scope.
type Task struct {
	ID   string
	Hour int
	Run  func(ctx context.Context)
}

// Scheduler owns the cron runner and rebuilds it when intervals change.
type Scheduler struct {
	settings *settings.Service
	logger   *slog.Logger

	mu    sync.Mutex
	tasks []Task
	cron  *cron.Cron
}

func New(settingsService *settings.Service, logger *slog.Logger) *Scheduler {
	return &Scheduler{settings: settingsService, logger: logger}
}

// AddTask registers a task. Call before Start.
func (scheduler *Scheduler) AddTask(task Task) {
	scheduler.tasks = append(scheduler.tasks, task)
}

// Start arms the triggers and subscribes to interval changes.
func (scheduler *Scheduler) Start(ctx context.Context) error {
	if err := scheduler.Rearm(ctx); err != nil {
		return err
	}
	scheduler.settings.Subscribe(func(key, value string) {
		if !settings.IsTaskIntervalKey(key) {
			return
		}
		if err := scheduler.Rearm(context.Background()); err != nil {
			scheduler.logger.Error("scheduler_rearm_failed", slog.Any("error", err))
		}
	})
	return nil
}

// Stop halts the cron runner, letting a running callback finish.
func (scheduler *Scheduler) Stop() {
	scheduler.mu.Lock()
	defer scheduler.mu.Unlock()
	if scheduler.cron != nil {
		<-scheduler.cron.Stop().Done()
		scheduler.cron = nil
	}
}

// Rearm rebuilds every trigger from the current interval settings.
func (scheduler *Scheduler) Rearm(ctx context.Context) error {
	scheduler.mu.Lock()
	defer scheduler.mu.Unlock()

	if scheduler.cron != nil {
		<-scheduler.cron.Stop().Done()
	}
	runner := cron.New()

	for _, task := range scheduler.tasks {
		key := fmt.Sprintf("system.task.%s.interval", task.ID)
		interval, err := scheduler.settings.Get(ctx, key)
		if err != nil {
			return err
		}

		spec, enabled := cronSpec(interval, task.Hour)
		if !enabled {
			scheduler.logger.InfoContext(ctx, "task_disabled", slog.String("task", task.ID))
			continue
		}

		run := task.Run
		id := task.ID
		if _, err := runner.AddFunc(spec, func() {
			scheduler.logger.Info("scheduled_task_started", slog.String("task", id))
			run(context.Background())
		}); err != nil {
			return fmt.Errorf("scheduler: arm %s: %w", task.ID, err)
		}
		scheduler.logger.InfoContext(ctx, "task_armed",
			slog.String("task", task.ID), slog.String("interval", interval), slog.String("spec", spec))
	}

	runner.Start()
	scheduler.cron = runner
	return nil
}

// ArmedCount returns how many triggers are currently scheduled.
func (scheduler *Scheduler) ArmedCount() int {
	scheduler.mu.Lock()
	defer scheduler.mu.Unlock()
	if scheduler.cron == nil {
		return 0
	}
	return len(scheduler.cron.Entries())
}

// cronSpec maps an interval setting onto a cron expression at the
// task's preferred hour. Disabled (or unknown) intervals arm nothing.
func cronSpec(interval string, hour int) (string, bool) {
	switch interval {
	case "daily":
		return fmt.Sprintf("0 %d * * *", hour), true
	case "weekly":
		return fmt.Sprintf("0 %d * * 0", hour), true
	case "monthly":
		return fmt.Sprintf("0 %d 1 * *", hour), true
	default:
		return "", false
	}
}
