// Copyright (c) 2026 Inkwell. All rights reserved.

package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhatvu/inkwell/internal/platform/sqlite/sqlitetest"
	"github.com/nhatvu/inkwell/internal/settings"
)

/*
TestCronSpec maps every interval value onto its cron expression.
*/
func TestCronSpec(t *testing.T) {
	tests := []struct {
		interval string
		hour     int
		spec     string
		enabled  bool
	}{
		{"daily", 2, "0 2 * * *", true},
		{"weekly", 3, "0 3 * * 0", true},
		{"monthly", 4, "0 4 1 * *", true},
		{"disabled", 2, "", false},
		{"hourly", 2, "", false},
	}

	for _, test := range tests {
		spec, enabled := cronSpec(test.interval, test.hour)
		assert.Equal(t, test.enabled, enabled, test.interval)
		assert.Equal(t, test.spec, spec, test.interval)
	}
}

/*
TestRearmOnIntervalChange starts with the defaults, disables one task
through settings and expects the trigger count to drop.
*/
func TestRearmOnIntervalChange(t *testing.T) {
	db := sqlitetest.NewDB(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	settingsService := settings.NewService(db, logger)
	require.NoError(t, settingsService.Sync(ctx))

	sched := New(settingsService, logger)
	sched.AddTask(Task{ID: TaskScan, Hour: 2, Run: func(ctx context.Context) {}})
	sched.AddTask(Task{ID: TaskBackup, Hour: 3, Run: func(ctx context.Context) {}})
	sched.AddTask(Task{ID: TaskCleanup, Hour: 4, Run: func(ctx context.Context) {}})

	require.NoError(t, sched.Start(ctx))
	defer sched.Stop()

	assert.Equal(t, 3, sched.ArmedCount(), "defaults arm every task")

	require.NoError(t, settingsService.Update(ctx, settings.KeyBackupInterval, "disabled"))
	assert.Equal(t, 2, sched.ArmedCount(), "the observer re-arms without the disabled task")

	require.NoError(t, settingsService.Update(ctx, settings.KeyBackupInterval, "monthly"))
	assert.Equal(t, 3, sched.ArmedCount())

	t.Run("unrelated_keys_do_not_rearm", func(t *testing.T) {
		require.NoError(t, settingsService.Update(ctx, settings.KeyBatchWindow, "300"))
		assert.Equal(t, 3, sched.ArmedCount())
	})
}
