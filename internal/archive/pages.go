// Copyright (c) 2026 Inkwell. All rights reserved.

package archive

import (
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/nhatvu/inkwell/pkg/natsort"
)

// imageExtensions is the allow-list of page file types.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
	".bmp":  true,
	".tiff": true,
}

// junkNames are well-known non-content entries, matched case-insensitively
// on the base name.
var junkNames = map[string]bool{
	"thumbs.db":   true,
	".ds_store":   true,
	"desktop.ini": true,
}

// coverToken matches an explicit cover marker as a delimited token: the
// token must be bounded by string start/end, a non-word character, or an
// underscore, so "discover.jpg" is not promoted.
var coverToken = regexp.MustCompile(`(?i)(?:^|[\W_])(?:fc|cover|front|scan)(?:[\W_]|$)`)

// isImageEntry reports whether an archive entry is a usable page.
func isImageEntry(name string) bool {
	base := strings.ToLower(path.Base(name))
	if junkNames[base] || strings.HasPrefix(base, "._") {
		return false
	}
	if strings.HasPrefix(strings.ToLower(name), "__macosx/") {
		return false
	}
	return imageExtensions[strings.ToLower(path.Ext(base))]
}

// isMetadataEntry reports whether an entry is the ComicInfo document.
func isMetadataEntry(name string) bool {
	return strings.ToLower(path.Base(name)) == metadataFileName
}

// coverPriority returns 0 for entries whose base name carries a cover
// token and 1 otherwise. Lower sorts first.
func coverPriority(name string) int {
	base := path.Base(name)
	base = strings.TrimSuffix(base, path.Ext(base))
	if coverToken.MatchString(base) {
		return 0
	}
	return 1
}

// orderPages filters entry names down to image pages and sorts them into
// reading order: cover-priority first, natural sort within each class.
func orderPages(entries []string) []string {
	pages := make([]string, 0, len(entries))
	for _, name := range entries {
		if isImageEntry(name) {
			pages = append(pages, name)
		}
	}

	sort.SliceStable(pages, func(i, j int) bool {
		pi, pj := coverPriority(pages[i]), coverPriority(pages[j])
		if pi != pj {
			return pi < pj
		}
		return natsort.Less(pages[i], pages[j])
	})

	return pages
}

// findMetadata returns the entry name of the ComicInfo document, if any.
func findMetadata(entries []string) (string, bool) {
	for _, name := range entries {
		if isMetadataEntry(name) {
			return name, true
		}
	}
	return "", false
}
