// Copyright (c) 2026 Inkwell. All rights reserved.

package scanner

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/nhatvu/inkwell/internal/platform/sqlite"
)

// Resolver is the per-scan get-or-create cache for the entity tables.
//
// Lookup order is cache, then database, then insert. Inserts run on the
// writer's open transaction and are never committed here, so a resolved
// id is only durable once the surrounding batch commits. When a batch
// rolls back the caller must Invalidate the caches, otherwise later
// batches would reference parents that were never written. One resolver
// lives for one scan and is discarded with it.
type Resolver struct {
	series       map[string]int64
	volumes      map[string]int64
	persons      map[string]int64
	characters   map[string]int64
	teams        map[string]int64
	locations    map[string]int64
	genres       map[string]int64
	collections  map[string]int64
	readingLists map[string]int64
}

func NewResolver() *Resolver {
	return &Resolver{
		series:       make(map[string]int64),
		volumes:      make(map[string]int64),
		persons:      make(map[string]int64),
		characters:   make(map[string]int64),
		teams:        make(map[string]int64),
		locations:    make(map[string]int64),
		genres:       make(map[string]int64),
		collections:  make(map[string]int64),
		readingLists: make(map[string]int64),
	}
}

// Invalidate drops every cached id. Call it after a batch rollback:
// ids minted inside the aborted transaction no longer exist, so the
// next batch has to resolve everything against the database again.
func (resolver *Resolver) Invalidate() {
	resolver.series = make(map[string]int64)
	resolver.volumes = make(map[string]int64)
	resolver.persons = make(map[string]int64)
	resolver.characters = make(map[string]int64)
	resolver.teams = make(map[string]int64)
	resolver.locations = make(map[string]int64)
	resolver.genres = make(map[string]int64)
	resolver.collections = make(map[string]int64)
	resolver.readingLists = make(map[string]int64)
}

// Series resolves a series by (library, name). Blank names are the
// caller's problem; the pipeline substitutes "Unknown Series" first.
func (resolver *Resolver) Series(ctx context.Context, tx *sqlite.Tx, libraryID int64, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("scanner: blank series name")
	}

	key := fmt.Sprintf("%d|%s", libraryID, name)
	if id, ok := resolver.series[key]; ok {
		return id, nil
	}

	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM series WHERE library_id = ? AND name = ?`, libraryID, name).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		result, err := tx.ExecContext(ctx, `INSERT INTO series (library_id, name) VALUES (?, ?)`, libraryID, name)
		if err != nil {
			return 0, fmt.Errorf("scanner: insert series %q: %w", name, err)
		}
		if id, err = result.LastInsertId(); err != nil {
			return 0, err
		}
	case err != nil:
		return 0, fmt.Errorf("scanner: lookup series %q: %w", name, err)
	}

	resolver.series[key] = id
	return id, nil
}

// Volume resolves a volume by (series, number).
func (resolver *Resolver) Volume(ctx context.Context, tx *sqlite.Tx, seriesID int64, number int) (int64, error) {
	key := fmt.Sprintf("%d|%d", seriesID, number)
	if id, ok := resolver.volumes[key]; ok {
		return id, nil
	}

	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM volumes WHERE series_id = ? AND volume_number = ?`, seriesID, number).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		result, err := tx.ExecContext(ctx, `INSERT INTO volumes (series_id, volume_number) VALUES (?, ?)`, seriesID, number)
		if err != nil {
			return 0, fmt.Errorf("scanner: insert volume %d: %w", number, err)
		}
		if id, err = result.LastInsertId(); err != nil {
			return 0, err
		}
	case err != nil:
		return 0, fmt.Errorf("scanner: lookup volume %d: %w", number, err)
	}

	resolver.volumes[key] = id
	return id, nil
}

// named implements the shared name-keyed get-or-create for the flat
// entity tables. Blank names resolve to (0, nil) and are dropped.
func (resolver *Resolver) named(ctx context.Context, tx *sqlite.Tx, cache map[string]int64, table, name string, extraColumns string, extraValues string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, nil
	}

	if id, ok := cache[name]; ok {
		return id, nil
	}

	var id int64
	err := tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE name = ?`, table), name).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		query := fmt.Sprintf(`INSERT INTO %s (name%s) VALUES (?%s)`, table, extraColumns, extraValues)
		result, err := tx.ExecContext(ctx, query, name)
		if err != nil {
			return 0, fmt.Errorf("scanner: insert %s %q: %w", table, name, err)
		}
		if id, err = result.LastInsertId(); err != nil {
			return 0, err
		}
	case err != nil:
		return 0, fmt.Errorf("scanner: lookup %s %q: %w", table, name, err)
	}

	cache[name] = id
	return id, nil
}

func (resolver *Resolver) Person(ctx context.Context, tx *sqlite.Tx, name string) (int64, error) {
	return resolver.named(ctx, tx, resolver.persons, "persons", name, "", "")
}

func (resolver *Resolver) Character(ctx context.Context, tx *sqlite.Tx, name string) (int64, error) {
	return resolver.named(ctx, tx, resolver.characters, "characters", name, "", "")
}

func (resolver *Resolver) Team(ctx context.Context, tx *sqlite.Tx, name string) (int64, error) {
	return resolver.named(ctx, tx, resolver.teams, "teams", name, "", "")
}

func (resolver *Resolver) Location(ctx context.Context, tx *sqlite.Tx, name string) (int64, error) {
	return resolver.named(ctx, tx, resolver.locations, "locations", name, "", "")
}

func (resolver *Resolver) Genre(ctx context.Context, tx *sqlite.Tx, name string) (int64, error) {
	return resolver.named(ctx, tx, resolver.genres, "genres", name, "", "")
}

// AutoCollection resolves an auto-generated collection by name.
func (resolver *Resolver) AutoCollection(ctx context.Context, tx *sqlite.Tx, name string) (int64, error) {
	return resolver.named(ctx, tx, resolver.collections, "collections", name, ", auto_generated", ", 1")
}

// AutoReadingList resolves an auto-generated reading list by name.
func (resolver *Resolver) AutoReadingList(ctx context.Context, tx *sqlite.Tx, name string) (int64, error) {
	return resolver.named(ctx, tx, resolver.readingLists, "reading_lists", name, ", auto_generated", ", 1")
}
