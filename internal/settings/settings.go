// Copyright (c) 2026 Inkwell. All rights reserved.

/*
Package settings is the typed runtime configuration store.

Definitions live in code; the database holds the values. A startup sync
inserts missing keys and refreshes metadata without ever touching a
stored value, so operator changes survive upgrades. Reads go through a
process-global cache invalidated on write.
*/
package settings

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/nhatvu/inkwell/internal/platform/apperr"
	"github.com/nhatvu/inkwell/internal/platform/dberr"
	"github.com/nhatvu/inkwell/internal/platform/sqlite"
)

// Value data types.
const (
	TypeString = "string"
	TypeInt    = "int"
	TypeBool   = "bool"
	TypeEnum   = "enum"
)

// Well-known keys.
const (
	KeyScanInterval    = "system.task.scan.interval"
	KeyBackupInterval  = "system.task.backup.interval"
	KeyCleanupInterval = "system.task.cleanup.interval"
	KeyBatchWindow     = "scanning.batch_window"
	KeyMetadataWorkers = "system.parallel_metadata_workers"
	KeyStalenessWeeks  = "ui.on_deck.staleness_weeks"
	KeyOPDSEnabled     = "server.opds_enabled"
	KeyRetentionDays   = "backup.retention_days"
	KeyLogLevel        = "general.log_level"
)

// taskIntervalPrefix selects the keys whose changes re-arm the scheduler.
const taskIntervalPrefix = "system.task."

// Definition is the code-side description of one setting.
type Definition struct {
	Key         string   `json:"key"`
	Default     string   `json:"-"`
	DataType    string   `json:"data_type"`
	Category    string   `json:"category"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
	Options     []string `json:"options,omitempty"`
	DependsOn   string   `json:"depends_on,omitempty"`
	Hidden      bool     `json:"-"`
}

// intervalOptions are the legal task interval values.
var intervalOptions = []string{"daily", "weekly", "monthly", "disabled"}

// registry declares every setting the application knows.
var registry = []Definition{
	{Key: KeyScanInterval, Default: "daily", DataType: TypeEnum, Category: "tasks",
		Label: "Library scan interval", Description: "How often all libraries are scanned automatically.", Options: intervalOptions},
	{Key: KeyBackupInterval, Default: "weekly", DataType: TypeEnum, Category: "tasks",
		Label: "Backup interval", Description: "How often a database backup archive is written.", Options: intervalOptions},
	{Key: KeyCleanupInterval, Default: "weekly", DataType: TypeEnum, Category: "tasks",
		Label: "Cleanup interval", Description: "How often orphaned entities are garbage collected.", Options: intervalOptions},
	{Key: KeyBatchWindow, Default: "600", DataType: TypeInt, Category: "scanning",
		Label: "Watcher batch window", Description: "Seconds of quiet time before a filesystem change triggers a scan."},
	{Key: KeyMetadataWorkers, Default: "0", DataType: TypeInt, Category: "scanning",
		Label: "Metadata workers", Description: "Extraction worker count. 0 uses half the CPU cores."},
	{Key: KeyStalenessWeeks, Default: "4", DataType: TypeInt, Category: "ui",
		Label: "On-deck staleness", Description: "Weeks without progress before an issue leaves the on-deck shelf."},
	{Key: KeyOPDSEnabled, Default: "false", DataType: TypeBool, Category: "server",
		Label: "OPDS catalog", Description: "Expose the OPDS feed endpoints."},
	{Key: KeyRetentionDays, Default: "30", DataType: TypeInt, Category: "backup",
		Label: "Backup retention", Description: "Days to keep backup archives before pruning."},
	{Key: KeyLogLevel, Default: "info", DataType: TypeEnum, Category: "general",
		Label: "Log level", Description: "Minimum level written to the log.", Options: []string{"debug", "info", "warn", "error"}},
}

// Setting is a definition joined with its stored value.
type Setting struct {
	Definition
	Value string `json:"value"`
}

// Observer is notified after a setting's value changes.
type Observer func(key, value string)

// Service owns the settings table and the read cache.
type Service struct {
	db     *sql.DB
	logger *slog.Logger

	mu        sync.RWMutex
	cache     map[string]string
	observers []Observer
}

func NewService(db *sql.DB, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger, cache: make(map[string]string)}
}

// Subscribe registers an observer for value changes. Not safe to call
// concurrently with Update; wire observers during startup.
func (service *Service) Subscribe(observer Observer) {
	service.observers = append(service.observers, observer)
}

// Sync reconciles the registry with the database: missing keys are
// inserted with defaults, metadata is always refreshed, stored values
// are never overwritten.
func (service *Service) Sync(ctx context.Context) error {
	err := sqlite.WriteTx(ctx, service.db, func(tx *sqlite.Tx) error {
		for _, definition := range registry {
			options := strings.Join(definition.Options, ",")
			_, err := tx.ExecContext(ctx, `
				INSERT INTO settings (key, value, data_type, category, label, description, options, depends_on, hidden)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(key) DO UPDATE SET
					data_type = excluded.data_type,
					category = excluded.category,
					label = excluded.label,
					description = excluded.description,
					options = excluded.options,
					depends_on = excluded.depends_on,
					hidden = excluded.hidden`,
				definition.Key, definition.Default, definition.DataType, definition.Category,
				definition.Label, definition.Description, options, definition.DependsOn, definition.Hidden)
			if err != nil {
				return fmt.Errorf("sync %s: %w", definition.Key, err)
			}
		}
		return nil
	})
	if err != nil {
		return dberr.Wrap(err, "sync_settings")
	}

	service.mu.Lock()
	service.cache = make(map[string]string)
	service.mu.Unlock()
	return nil
}

// Get returns the raw string value for key.
func (service *Service) Get(ctx context.Context, key string) (string, error) {
	service.mu.RLock()
	if value, ok := service.cache[key]; ok {
		service.mu.RUnlock()
		return value, nil
	}
	service.mu.RUnlock()

	var value string
	err := service.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", apperr.NotFound("Setting")
	}
	if err != nil {
		return "", dberr.Wrap(err, "get_setting")
	}

	service.mu.Lock()
	service.cache[key] = value
	service.mu.Unlock()
	return value, nil
}

// GetInt returns an integer setting, falling back to the registry
// default when the stored value does not parse.
func (service *Service) GetInt(ctx context.Context, key string) (int, error) {
	raw, err := service.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		if definition, ok := definitionOf(key); ok {
			if fallback, err := strconv.Atoi(definition.Default); err == nil {
				return fallback, nil
			}
		}
		return 0, apperr.Unprocessable(fmt.Sprintf("setting %s is not an integer", key))
	}
	return value, nil
}

// GetBool returns a boolean setting.
func (service *Service) GetBool(ctx context.Context, key string) (bool, error) {
	raw, err := service.Get(ctx, key)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes", "on":
		return true, nil
	default:
		return false, nil
	}
}

// List returns every visible setting grouped by category.
func (service *Service) List(ctx context.Context) (map[string][]Setting, error) {
	rows, err := service.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, dberr.Wrap(err, "list_settings")
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, dberr.Wrap(err, "scan_setting")
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, "list_settings")
	}

	grouped := make(map[string][]Setting)
	for _, definition := range registry {
		if definition.Hidden {
			continue
		}
		value, ok := values[definition.Key]
		if !ok {
			value = definition.Default
		}
		grouped[definition.Category] = append(grouped[definition.Category], Setting{
			Definition: definition,
			Value:      value,
		})
	}
	return grouped, nil
}

// Update validates and writes one value, invalidates the cache entry and
// notifies observers.
func (service *Service) Update(ctx context.Context, key, value string) error {
	definition, ok := definitionOf(key)
	if !ok {
		return apperr.NotFound("Setting")
	}
	if err := validate(definition, value); err != nil {
		return err
	}

	err := sqlite.WriteTx(ctx, service.db, func(tx *sqlite.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE settings SET value = ? WHERE key = ?`, value, key)
		return err
	})
	if err != nil {
		return dberr.Wrap(err, "update_setting")
	}

	service.mu.Lock()
	delete(service.cache, key)
	service.mu.Unlock()

	service.logger.InfoContext(ctx, "setting_updated", slog.String("key", key), slog.String("value", value))
	for _, observer := range service.observers {
		observer(key, value)
	}
	return nil
}

// IsTaskIntervalKey reports whether a key change must re-arm the
// scheduler.
func IsTaskIntervalKey(key string) bool {
	return strings.HasPrefix(key, taskIntervalPrefix) && strings.HasSuffix(key, ".interval")
}

func definitionOf(key string) (Definition, bool) {
	for _, definition := range registry {
		if definition.Key == key {
			return definition, true
		}
	}
	return Definition{}, false
}

// validate enforces the declared data type before a value is stored.
func validate(definition Definition, value string) error {
	switch definition.DataType {
	case TypeInt:
		if _, err := strconv.Atoi(strings.TrimSpace(value)); err != nil {
			return apperr.ValidationError(fmt.Sprintf("%s requires an integer value", definition.Key))
		}
	case TypeBool:
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "false", "1", "0", "yes", "no", "on", "off":
		default:
			return apperr.ValidationError(fmt.Sprintf("%s requires a boolean value", definition.Key))
		}
	case TypeEnum:
		for _, option := range definition.Options {
			if value == option {
				return nil
			}
		}
		return apperr.ValidationError(fmt.Sprintf("%s must be one of %s",
			definition.Key, strings.Join(definition.Options, ", ")))
	}
	return nil
}
