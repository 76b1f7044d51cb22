// Copyright (c) 2026 Inkwell. All rights reserved.

package metadata_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhatvu/inkwell/internal/metadata"
)

/*
TestParse_FullDocument checks a representative well-formed document end
to end: scalars, date triple, tag lists, and per-role credits.
*/
func TestParse_FullDocument(t *testing.T) {
	doc := []byte(`<?xml version="1.0"?>
<ComicInfo>
  <Title>The Long Night</Title>
  <Series>Moon City</Series>
  <Number> 3 </Number>
  <Count>12</Count>
  <Volume>1</Volume>
  <Year>2019</Year>
  <Month>4</Month>
  <Day>17</Day>
  <Writer>Ann Ward, Bo Chen</Writer>
  <Penciller>Bo Chen</Penciller>
  <CoverArtist>Rita Moss</CoverArtist>
  <Publisher>Nightshade</Publisher>
  <Genre>Crime, Mystery, Crime</Genre>
  <Characters>Mara Voss, Detective Hale</Characters>
  <AgeRating>Teen</AgeRating>
  <LanguageISO>en</LanguageISO>
  <Format></Format>
  <CommunityRating>4.2</CommunityRating>
</ComicInfo>`)

	record, err := metadata.Parse(doc)
	require.NoError(t, err)

	require.NotNil(t, record.Title)
	assert.Equal(t, "The Long Night", *record.Title)
	require.NotNil(t, record.Series)
	assert.Equal(t, "Moon City", *record.Series)
	require.NotNil(t, record.Number)
	assert.Equal(t, "3", *record.Number)
	require.NotNil(t, record.Count)
	assert.Equal(t, 12, *record.Count)
	require.NotNil(t, record.Year)
	assert.Equal(t, 2019, *record.Year)
	require.NotNil(t, record.Month)
	assert.Equal(t, 4, *record.Month)
	require.NotNil(t, record.Day)
	assert.Equal(t, 17, *record.Day)
	require.NotNil(t, record.AgeRating)
	assert.Equal(t, "Teen", *record.AgeRating)
	require.NotNil(t, record.CommunityRating)
	assert.InDelta(t, 4.2, *record.CommunityRating, 0.001)

	// Empty tag behaves exactly like an absent tag.
	assert.Nil(t, record.Format)
	assert.Nil(t, record.Summary)

	assert.Equal(t, []string{"Crime", "Mystery"}, record.Genres)
	assert.Equal(t, []string{"Mara Voss", "Detective Hale"}, record.Characters)
	assert.Equal(t, []string{"Ann Ward", "Bo Chen"}, record.Credits[metadata.RoleWriter])
	assert.Equal(t, []string{"Bo Chen"}, record.Credits[metadata.RolePenciller])
	assert.Equal(t, []string{"Rita Moss"}, record.Credits[metadata.RoleCoverArtist])
	assert.Empty(t, record.Credits[metadata.RoleEditor])

	assert.Equal(t, doc, record.Raw)
}

/*
TestParse_LenientNumerics checks that comma decimals are accepted, the
community rating is clamped, and malformed numerics become nil instead
of failing the document.
*/
func TestParse_LenientNumerics(t *testing.T) {
	tests := []struct {
		name   string
		rating string
		want   *float64
	}{
		{"comma_separator", "3,5", ptr(3.5)},
		{"clamped_high", "9.9", ptr(5.0)},
		{"clamped_negative", "-1", ptr(0.0)},
		{"malformed", "great", nil},
		{"blank", "  ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := []byte(`<ComicInfo><CommunityRating>` + tt.rating + `</CommunityRating></ComicInfo>`)

			record, err := metadata.Parse(doc)
			require.NoError(t, err)

			if tt.want == nil {
				assert.Nil(t, record.CommunityRating)
				return
			}
			require.NotNil(t, record.CommunityRating)
			assert.InDelta(t, *tt.want, *record.CommunityRating, 0.001)
		})
	}

	t.Run("malformed_count", func(t *testing.T) {
		record, err := metadata.Parse([]byte(`<ComicInfo><Count>dozen</Count></ComicInfo>`))
		require.NoError(t, err)
		assert.Nil(t, record.Count)
	})

	t.Run("broken_document", func(t *testing.T) {
		_, err := metadata.Parse([]byte(`<ComicInfo><Title>unterminated`))
		assert.Error(t, err)
	})
}

/*
TestNormalizeIssueNumber checks unicode fraction rewriting and trimming.
*/
func TestNormalizeIssueNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"½", "0.5"},
		{" ½ ", "0.5"},
		{"1½", "10.5"},
		{"¼", "0.25"},
		{" 10a ", "10a"},
		{"Annual", "Annual"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, metadata.NormalizeIssueNumber(tt.in), "input %q", tt.in)
	}
}

/*
TestSplitList checks comma splitting, trimming, blank dropping, and
order-preserving de-duplication.
*/
func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, metadata.SplitList(" A , B , A "))
	assert.Equal(t, []string{"Solo"}, metadata.SplitList("Solo"))
	assert.Nil(t, metadata.SplitList("  "))
	assert.Nil(t, metadata.SplitList(", ,"))
	assert.Equal(t, []string{"a", "A"}, metadata.SplitList("a,A"))
}

func ptr(f float64) *float64 { return &f }
