// Copyright (c) 2026 Inkwell. All rights reserved.

/*
Package comic is the heart of the library model: Library, Series, Volume
and Comic (one archive file = one issue), plus the read-side query layer
the API is built on.

# Architecture

The package follows the standard layering: entities here, the Repository
contract in store.go, the SQLite implementation in store_sqlite*.go, the
business rules in service.go, and the HTTP surface in http.go. Every read
query embeds the caller's policy fragments; nothing is post-filtered.
*/
package comic

import "time"

// Library is one root directory of comic archives.
type Library struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	RootPath      string    `json:"root_path"`
	WatchEnabled  bool      `json:"watch_enabled"`
	ScanOnStartup bool      `json:"scan_on_startup"`
	IsScanning    bool      `json:"is_scanning"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Series is a titled run inside a library.
type Series struct {
	ID        int64     `json:"id"`
	LibraryID int64     `json:"library_id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Summary   *string   `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// IssueCount is populated by listing queries.
	IssueCount int `json:"issue_count,omitempty"`
}

// Volume is a numbered run within a series.
type Volume struct {
	ID           int64 `json:"id"`
	SeriesID     int64 `json:"series_id"`
	VolumeNumber int   `json:"volume_number"`

	IssueCount int `json:"issue_count,omitempty"`
}

// Comic is one issue, backed by exactly one archive file on disk.
type Comic struct {
	ID              int64    `json:"id"`
	VolumeID        int64    `json:"volume_id"`
	FilePath        string   `json:"file_path"`
	FileName        string   `json:"file_name"`
	FileSize        int64    `json:"file_size"`
	FileMtime       int64    `json:"-"`
	PageCount       int      `json:"page_count"`
	Number          string   `json:"number"`
	Title           *string  `json:"title"`
	Summary         *string  `json:"summary"`
	Year            *int     `json:"year"`
	Month           *int     `json:"month"`
	Day             *int     `json:"day"`
	Web             *string  `json:"web"`
	Notes           *string  `json:"notes"`
	AgeRating       *string  `json:"age_rating"`
	LanguageISO     *string  `json:"language_iso"`
	CommunityRating *float64 `json:"community_rating"`
	DeclaredCount   *int     `json:"declared_count"`
	Publisher       *string  `json:"publisher"`
	Imprint         *string  `json:"imprint"`
	Format          string   `json:"format"`
	SeriesGroup     *string  `json:"series_group"`
	ScanInfo        *string  `json:"scan_info"`
	AlternateSeries *string  `json:"alternate_series"`
	AlternateNumber *string  `json:"alternate_number"`
	StoryArc        *string  `json:"story_arc"`
	RawMetadata     *string  `json:"-"`
	ThumbnailPath   *string  `json:"-"`
	ColorPalette    *string  `json:"color_palette"`
	IsDirty         bool     `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Denormalized context for list/detail payloads.
	SeriesID     int64  `json:"series_id,omitempty"`
	SeriesName   string `json:"series_name,omitempty"`
	VolumeNumber int    `json:"volume_number,omitempty"`
}

// CreditLine is one (person, role) attribution on an issue.
type CreditLine struct {
	PersonID int64  `json:"person_id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

// CreatorCount aggregates how many issues a person worked on, used by
// the detail pages' top-creator lists.
type CreatorCount struct {
	PersonID int64  `json:"person_id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Issues   int    `json:"issues"`
}
