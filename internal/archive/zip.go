// Copyright (c) 2026 Inkwell. All rights reserved.

package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
)

// zipArchive reads CBZ/ZIP containers through the standard library reader.
// The file handle stays open for the archive's lifetime so individual pages
// decompress without re-opening.
type zipArchive struct {
	file     *os.File
	reader   *zip.Reader
	pages    []string
	metaName string
	byName   map[string]*zip.File
}

func openZip(path string, size int64) (Archive, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadArchive, path, err)
	}

	reader, err := zip.NewReader(file, size)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrBadArchive, path, err)
	}

	entries := make([]string, 0, len(reader.File))
	byName := make(map[string]*zip.File, len(reader.File))
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		entries = append(entries, entry.Name)
		byName[entry.Name] = entry
	}

	metaName, _ := findMetadata(entries)

	return &zipArchive{
		file:     file,
		reader:   reader,
		pages:    orderPages(entries),
		metaName: metaName,
		byName:   byName,
	}, nil
}

func (a *zipArchive) Pages() []string { return a.pages }

func (a *zipArchive) ReadPage(name string) ([]byte, error) {
	entry, ok := a.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPageNotFound, name)
	}
	return readZipEntry(entry)
}

func (a *zipArchive) ReadMetadata() ([]byte, error) {
	if a.metaName == "" {
		return nil, ErrNoMetadata
	}
	return readZipEntry(a.byName[a.metaName])
}

func (a *zipArchive) Close() error {
	return a.file.Close()
}

func readZipEntry(entry *zip.File) ([]byte, error) {
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
