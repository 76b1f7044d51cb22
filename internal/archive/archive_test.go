// Copyright (c) 2026 Inkwell. All rights reserved.

package archive_test

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhatvu/inkwell/internal/archive"
)

// writeZip builds a zip fixture on disk with the given entry names and
// trivial bytes, returning its path.
func writeZip(t *testing.T, name string, entries map[string][]byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	file, err := os.Create(path)
	require.NoError(t, err)

	writer := zip.NewWriter(file)
	for entryName, data := range entries {
		entry, err := writer.Create(entryName)
		require.NoError(t, err)
		_, err = entry.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	require.NoError(t, file.Close())

	return path
}

/*
TestOpen_PageOrdering verifies that pages come back in natural reading
order regardless of entry order, and that junk entries are dropped.
*/
func TestOpen_PageOrdering(t *testing.T) {
	path := writeZip(t, "ordering.cbz", map[string][]byte{
		"10.jpg":            []byte("a"),
		"2.jpg":             []byte("b"),
		"01.jpg":            []byte("c"),
		"Thumbs.db":         []byte("junk"),
		"notes.txt":         []byte("junk"),
		"__MACOSX/01.jpg":   []byte("junk"),
		"._02.jpg":          []byte("junk"),
		"sub/desktop.ini":   []byte("junk"),
		"sub/extra/20.jpeg": []byte("d"),
	})

	reader, err := archive.Open(path)
	require.NoError(t, err)
	defer func() { _ = reader.Close() }()

	assert.Equal(t, []string{"01.jpg", "2.jpg", "10.jpg", "sub/extra/20.jpeg"}, reader.Pages())
}

/*
TestOpen_CoverPriority verifies that delimited cover tokens promote an
entry to the front while embedded matches like "discover" do not.
*/
func TestOpen_CoverPriority(t *testing.T) {
	tests := []struct {
		name    string
		entries []string
		first   string
	}{
		{"explicit_cover", []string{"001.jpg", "cover.jpg"}, "cover.jpg"},
		{"fc_token", []string{"001.jpg", "x-fc.png"}, "x-fc.png"},
		{"front_token", []string{"001.jpg", "my_front_01.jpg"}, "my_front_01.jpg"},
		{"embedded_not_promoted", []string{"001.jpg", "discover.jpg"}, "001.jpg"},
		{"uppercase_token", []string{"001.jpg", "COVER.JPG"}, "COVER.JPG"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := make(map[string][]byte, len(tt.entries))
			for _, name := range tt.entries {
				entries[name] = []byte("x")
			}
			path := writeZip(t, "cover.cbz", entries)

			reader, err := archive.Open(path)
			require.NoError(t, err)
			defer func() { _ = reader.Close() }()

			pages := reader.Pages()
			require.NotEmpty(t, pages)
			assert.Equal(t, tt.first, pages[0])
		})
	}
}

/*
TestOpen_SeparatorOrdering verifies the separator remap: a hyphen suffix
sorts after an alphanumeric one, so "c01a" precedes "c01-x".
*/
func TestOpen_SeparatorOrdering(t *testing.T) {
	path := writeZip(t, "sep.cbz", map[string][]byte{
		"c01-x.jpg": []byte("a"),
		"c01a.jpg":  []byte("b"),
	})

	reader, err := archive.Open(path)
	require.NoError(t, err)
	defer func() { _ = reader.Close() }()

	assert.Equal(t, []string{"c01a.jpg", "c01-x.jpg"}, reader.Pages())
}

/*
TestOpen_Metadata verifies ComicInfo discovery by case-insensitive base
name, page reads by exact entry name, and the no-metadata error.
*/
func TestOpen_Metadata(t *testing.T) {
	t.Run("found_nested_mixed_case", func(t *testing.T) {
		path := writeZip(t, "meta.cbz", map[string][]byte{
			"001.jpg":           []byte("page-one"),
			"sub/ComicInfo.XML": []byte("<ComicInfo/>"),
		})

		reader, err := archive.Open(path)
		require.NoError(t, err)
		defer func() { _ = reader.Close() }()

		meta, err := reader.ReadMetadata()
		require.NoError(t, err)
		assert.Equal(t, "<ComicInfo/>", string(meta))

		page, err := reader.ReadPage("001.jpg")
		require.NoError(t, err)
		assert.Equal(t, "page-one", string(page))

		_, err = reader.ReadPage("missing.jpg")
		assert.ErrorIs(t, err, archive.ErrPageNotFound)
	})

	t.Run("absent", func(t *testing.T) {
		path := writeZip(t, "nometa.cbz", map[string][]byte{
			"001.jpg": []byte("x"),
		})

		reader, err := archive.Open(path)
		require.NoError(t, err)
		defer func() { _ = reader.Close() }()

		_, err = reader.ReadMetadata()
		assert.ErrorIs(t, err, archive.ErrNoMetadata)
	})
}

/*
TestOpen_Sniffing verifies that the content signature wins over a
misleading extension and that unreadable files map to the right errors.
*/
func TestOpen_Sniffing(t *testing.T) {
	t.Run("zip_labelled_cbr", func(t *testing.T) {
		zipPath := writeZip(t, "real.cbz", map[string][]byte{"001.jpg": []byte("x")})

		mislabelled := filepath.Join(t.TempDir(), "mislabelled.cbr")
		data, err := os.ReadFile(zipPath)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(mislabelled, data, 0o644))

		reader, err := archive.Open(mislabelled)
		require.NoError(t, err)
		defer func() { _ = reader.Close() }()

		assert.Equal(t, []string{"001.jpg"}, reader.Pages())
	})

	t.Run("missing_file", func(t *testing.T) {
		_, err := archive.Open(filepath.Join(t.TempDir(), "missing.cbz"))
		assert.ErrorIs(t, err, archive.ErrNotFound)
	})

	t.Run("empty_file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.cbz")
		require.NoError(t, os.WriteFile(path, nil, 0o644))

		_, err := archive.Open(path)
		assert.ErrorIs(t, err, archive.ErrBadArchive)
	})

	t.Run("unknown_extension_unknown_content", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "weird.bin")
		require.NoError(t, os.WriteFile(path, []byte("not an archive"), 0o644))

		_, err := archive.Open(path)
		assert.ErrorIs(t, err, archive.ErrBadArchive)
	})
}

/*
TestIsSupportedPath checks the walk-time extension filter.
*/
func TestIsSupportedPath(t *testing.T) {
	assert.True(t, archive.IsSupportedPath("/lib/A/issue 01.CBZ"))
	assert.True(t, archive.IsSupportedPath("b.cbr"))
	assert.True(t, archive.IsSupportedPath("c.cb7"))
	assert.False(t, archive.IsSupportedPath("d.pdf"))
	assert.False(t, archive.IsSupportedPath("e.epub"))
}
