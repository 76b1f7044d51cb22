// Copyright (c) 2026 Inkwell. All rights reserved.

package archive

import (
	"errors"
	"fmt"
	"io"

	"github.com/nwaples/rardecode/v2"
)

// rarArchive reads CBR/RAR containers.
//
// RAR is a sequential stream format without cheap random access, so the
// entry list is captured once at open time and each page read re-walks the
// stream to its entry. Comic pages are read once per request and cached as
// thumbnails downstream, so the re-walk cost is acceptable.
type rarArchive struct {
	path     string
	pages    []string
	metaName string
}

func openRar(path string) (Archive, error) {
	entries, err := listRarEntries(path)
	if err != nil {
		return nil, err
	}

	metaName, _ := findMetadata(entries)

	return &rarArchive{
		path:     path,
		pages:    orderPages(entries),
		metaName: metaName,
	}, nil
}

func listRarEntries(path string) ([]string, error) {
	reader, err := rardecode.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadArchive, path, err)
	}
	defer func() { _ = reader.Close() }()

	var entries []string
	for {
		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadArchive, path, err)
		}
		if header.IsDir {
			continue
		}
		entries = append(entries, header.Name)
	}

	return entries, nil
}

func (a *rarArchive) Pages() []string { return a.pages }

func (a *rarArchive) ReadPage(name string) ([]byte, error) {
	return a.readEntry(name)
}

func (a *rarArchive) ReadMetadata() ([]byte, error) {
	if a.metaName == "" {
		return nil, ErrNoMetadata
	}
	return a.readEntry(a.metaName)
}

func (a *rarArchive) Close() error {
	// Nothing held open between reads.
	return nil
}

func (a *rarArchive) readEntry(name string) ([]byte, error) {
	reader, err := rardecode.OpenReader(a.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadArchive, a.path, err)
	}
	defer func() { _ = reader.Close() }()

	for {
		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadArchive, a.path, err)
		}
		if header.Name != name {
			continue
		}

		data, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadArchive, name, err)
		}
		return data, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrPageNotFound, name)
}
