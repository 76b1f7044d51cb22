// Copyright (c) 2026 Inkwell. All rights reserved.

/*
Package archive reads comic book archives (CBZ/CBR/CB7).

It exposes three things per archive: the ordered page list, page bytes by
name, and the embedded ComicInfo.xml document. The container format is
decided by content sniffing (magic bytes first, file extension only as a
fallback) so mislabelled files, like a CBR that is really a zip, still open.

# Resource Discipline

Every Open must be paired with Close. Readers hold an open file handle (zip,
7z) or re-scan the archive per entry (rar, which is a solid stream format);
either way Close releases everything on all exit paths.
*/
package archive

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Well-known errors, matched with errors.Is by the scan pipeline.
var (
	// ErrNotFound means the archive file does not exist on disk.
	ErrNotFound = errors.New("archive: file not found")

	// ErrBadArchive means the file exists but cannot be read as a supported
	// archive format.
	ErrBadArchive = errors.New("archive: unsupported or corrupt archive")

	// ErrNoMetadata means the archive contains no ComicInfo document.
	ErrNoMetadata = errors.New("archive: no metadata document")

	// ErrPageNotFound means the requested entry is not present.
	ErrPageNotFound = errors.New("archive: page not found")
)

// metadataFileName is the well-known metadata document, matched
// case-insensitively against entry base names.
const metadataFileName = "comicinfo.xml"

// Archive is an opened comic archive.
type Archive interface {
	// Pages returns image entry names in reading order: cover-priority
	// names first, then natural sort.
	Pages() []string

	// ReadPage returns the raw bytes of one entry by its exact name.
	ReadPage(name string) ([]byte, error)

	// ReadMetadata returns the embedded ComicInfo document, or
	// ErrNoMetadata when the archive has none.
	ReadMetadata() ([]byte, error)

	// Close releases the underlying file handles.
	Close() error
}

// SupportedExtensions lists the archive extensions the library walk keeps.
var SupportedExtensions = []string{".cbz", ".zip", ".cbr", ".rar", ".cb7", ".7z"}

// IsSupportedPath reports whether the file name carries a supported
// archive extension.
func IsSupportedPath(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range SupportedExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Open sniffs the format of the file at path and returns a reader for it.
func Open(path string) (Archive, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrBadArchive, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrBadArchive, path)
	}

	format, err := sniffFormat(path)
	if err != nil {
		return nil, err
	}

	switch format {
	case formatZip:
		return openZip(path, info.Size())
	case formatRar:
		return openRar(path)
	case format7z:
		return open7z(path)
	}

	return nil, fmt.Errorf("%w: %s", ErrBadArchive, path)
}
