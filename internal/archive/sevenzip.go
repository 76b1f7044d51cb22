// Copyright (c) 2026 Inkwell. All rights reserved.

package archive

import (
	"fmt"
	"io"

	"github.com/bodgit/sevenzip"
)

// sevenZipArchive reads CB7/7Z containers through bodgit/sevenzip.
type sevenZipArchive struct {
	reader   *sevenzip.ReadCloser
	pages    []string
	metaName string
	byName   map[string]*sevenzip.File
}

func open7z(path string) (Archive, error) {
	reader, err := sevenzip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadArchive, path, err)
	}

	entries := make([]string, 0, len(reader.File))
	byName := make(map[string]*sevenzip.File, len(reader.File))
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		entries = append(entries, entry.Name)
		byName[entry.Name] = entry
	}

	metaName, _ := findMetadata(entries)

	return &sevenZipArchive{
		reader:   reader,
		pages:    orderPages(entries),
		metaName: metaName,
		byName:   byName,
	}, nil
}

func (a *sevenZipArchive) Pages() []string { return a.pages }

func (a *sevenZipArchive) ReadPage(name string) ([]byte, error) {
	entry, ok := a.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPageNotFound, name)
	}
	return read7zEntry(entry)
}

func (a *sevenZipArchive) ReadMetadata() ([]byte, error) {
	if a.metaName == "" {
		return nil, ErrNoMetadata
	}
	return read7zEntry(a.byName[a.metaName])
}

func (a *sevenZipArchive) Close() error {
	return a.reader.Close()
}

func read7zEntry(entry *sevenzip.File) ([]byte, error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadArchive, entry.Name, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadArchive, entry.Name, err)
	}
	return data, nil
}
