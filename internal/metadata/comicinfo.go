// Copyright (c) 2026 Inkwell. All rights reserved.

/*
Package metadata parses embedded ComicInfo documents.

The format in the wild is messy: tags are omitted or left empty, decimal
values arrive with comma separators, and issue numbers carry unicode
fractions. The parser is lenient about all of that. It never trusts the
declared page count; the physical archive count always wins downstream.
*/
package metadata

import (
	"encoding/xml"
	"fmt"
)

// Credit roles recognized in ComicInfo documents.
const (
	RoleWriter      = "writer"
	RolePenciller   = "penciller"
	RoleInker       = "inker"
	RoleColorist    = "colorist"
	RoleLetterer    = "letterer"
	RoleCoverArtist = "cover_artist"
	RoleEditor      = "editor"
)

// Roles lists every credit role in a stable order.
var Roles = []string{
	RoleWriter,
	RolePenciller,
	RoleInker,
	RoleColorist,
	RoleLetterer,
	RoleCoverArtist,
	RoleEditor,
}

// Record is the normalized result of parsing one ComicInfo document.
// Optional fields are nil when the tag was absent or empty.
type Record struct {
	Title           *string
	Series          *string
	Number          *string
	Count           *int
	Volume          *int
	AlternateSeries *string
	AlternateNumber *string
	SeriesGroup     *string
	StoryArc        *string
	Summary         *string
	Notes           *string
	Year            *int
	Month           *int
	Day             *int
	Publisher       *string
	Imprint         *string
	Web             *string
	LanguageISO     *string
	Format          *string
	AgeRating       *string
	ScanInformation *string
	CommunityRating *float64

	Genres     []string
	Characters []string
	Teams      []string
	Locations  []string

	// Credits maps role identifier to person names, first-seen order.
	Credits map[string][]string

	// Raw is the original document, persisted verbatim alongside the
	// normalized fields.
	Raw []byte
}

// comicInfoXML mirrors the ComicInfo schema as plain strings. Everything
// is decoded as text first so that malformed numerics degrade to absent
// values instead of failing the whole document.
type comicInfoXML struct {
	XMLName         xml.Name `xml:"ComicInfo"`
	Title           string   `xml:"Title"`
	Series          string   `xml:"Series"`
	Number          string   `xml:"Number"`
	Count           string   `xml:"Count"`
	Volume          string   `xml:"Volume"`
	AlternateSeries string   `xml:"AlternateSeries"`
	AlternateNumber string   `xml:"AlternateNumber"`
	SeriesGroup     string   `xml:"SeriesGroup"`
	StoryArc        string   `xml:"StoryArc"`
	Summary         string   `xml:"Summary"`
	Notes           string   `xml:"Notes"`
	Year            string   `xml:"Year"`
	Month           string   `xml:"Month"`
	Day             string   `xml:"Day"`
	Writer          string   `xml:"Writer"`
	Penciller       string   `xml:"Penciller"`
	Inker           string   `xml:"Inker"`
	Colorist        string   `xml:"Colorist"`
	Letterer        string   `xml:"Letterer"`
	CoverArtist     string   `xml:"CoverArtist"`
	Editor          string   `xml:"Editor"`
	Publisher       string   `xml:"Publisher"`
	Imprint         string   `xml:"Imprint"`
	Genre           string   `xml:"Genre"`
	Web             string   `xml:"Web"`
	LanguageISO     string   `xml:"LanguageISO"`
	Format          string   `xml:"Format"`
	AgeRating       string   `xml:"AgeRating"`
	Characters      string   `xml:"Characters"`
	Teams           string   `xml:"Teams"`
	Locations       string   `xml:"Locations"`
	ScanInformation string   `xml:"ScanInformation"`
	CommunityRating string   `xml:"CommunityRating"`
}

// Parse decodes one ComicInfo document into a normalized Record.
// Only a structurally broken document is an error; individual bad field
// values are dropped.
func Parse(data []byte) (*Record, error) {
	var doc comicInfoXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("metadata: decode comicinfo: %w", err)
	}

	record := &Record{
		Title:           optString(doc.Title),
		Series:          optString(doc.Series),
		Number:          optIssueNumber(doc.Number),
		Count:           optInt(doc.Count),
		Volume:          optInt(doc.Volume),
		AlternateSeries: optString(doc.AlternateSeries),
		AlternateNumber: optIssueNumber(doc.AlternateNumber),
		SeriesGroup:     optString(doc.SeriesGroup),
		StoryArc:        optString(doc.StoryArc),
		Summary:         optString(doc.Summary),
		Notes:           optString(doc.Notes),
		Year:            optInt(doc.Year),
		Month:           optInt(doc.Month),
		Day:             optInt(doc.Day),
		Publisher:       optString(doc.Publisher),
		Imprint:         optString(doc.Imprint),
		Web:             optString(doc.Web),
		LanguageISO:     optString(doc.LanguageISO),
		Format:          optString(doc.Format),
		AgeRating:       optString(doc.AgeRating),
		ScanInformation: optString(doc.ScanInformation),
		CommunityRating: optRating(doc.CommunityRating),
		Genres:          SplitList(doc.Genre),
		Characters:      SplitList(doc.Characters),
		Teams:           SplitList(doc.Teams),
		Locations:       SplitList(doc.Locations),
		Credits: map[string][]string{
			RoleWriter:      SplitList(doc.Writer),
			RolePenciller:   SplitList(doc.Penciller),
			RoleInker:       SplitList(doc.Inker),
			RoleColorist:    SplitList(doc.Colorist),
			RoleLetterer:    SplitList(doc.Letterer),
			RoleCoverArtist: SplitList(doc.CoverArtist),
			RoleEditor:      SplitList(doc.Editor),
		},
		Raw: data,
	}

	return record, nil
}
