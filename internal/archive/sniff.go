// Copyright (c) 2026 Inkwell. All rights reserved.

package archive

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type format int

const (
	formatUnknown format = iota
	formatZip
	formatRar
	format7z
)

// Magic signatures for the supported container formats.
var (
	magicZip  = []byte{0x50, 0x4B, 0x03, 0x04}             // PK\x03\x04
	magicRar4 = []byte{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07} // Rar!\x1a\x07 (v4 and v5 share the prefix)
	magic7z   = []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C} // 7z\xbc\xaf'\x1c
)

// sniffFormat decides the archive format from the file's leading bytes,
// falling back to the extension when the signature is unrecognized.
//
// Content wins over extension: a ".cbr" that starts with a zip signature is
// treated as a zip. Extension is consulted only when the header matches no
// known magic, which covers self-extracting or otherwise prefixed files the
// format readers may still understand.
func sniffFormat(path string) (format, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return formatUnknown, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return formatUnknown, fmt.Errorf("%w: %s: %v", ErrBadArchive, path, err)
	}
	defer func() { _ = file.Close() }()

	header := make([]byte, 8)
	n, err := io.ReadFull(file, header)
	if err != nil && n == 0 {
		return formatUnknown, fmt.Errorf("%w: %s: empty file", ErrBadArchive, path)
	}
	header = header[:n]

	switch {
	case bytes.HasPrefix(header, magicZip):
		return formatZip, nil
	case bytes.HasPrefix(header, magicRar4):
		return formatRar, nil
	case bytes.HasPrefix(header, magic7z):
		return format7z, nil
	}

	// Fallback: trust the extension for files without a leading signature.
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cbz", ".zip":
		return formatZip, nil
	case ".cbr", ".rar":
		return formatRar, nil
	case ".cb7", ".7z":
		return format7z, nil
	}

	return formatUnknown, fmt.Errorf("%w: %s", ErrBadArchive, path)
}
