package fcs_test

import (
	"testing"

	"github.com/nsbuitrago/fcs3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseText(t *testing.T) {
	kw, err := fcs.ParseText([]byte("/$PAR/2/$P1N/FSC-A/$tot/100/"))
	require.NoError(t, err)

	assert.Equal(t, byte('/'), kw.Delimiter())
	assert.Equal(t, 3, kw.Len())
	assert.Equal(t, []string{"$PAR", "$P1N", "$tot"}, kw.Keys())

	v, ok := kw.Get("$TOT")
	assert.True(t, ok)
	assert.Equal(t, "100", v)
	assert.Equal(t, "FSC-A", kw.Value("$p1n"))

	_, ok = kw.Get("$P2N")
	assert.False(t, ok)
	assert.Equal(t, "", kw.Value("$P2N"))
}

func TestParseText_EscapedDelimiter(t *testing.T) {
	kw, err := fcs.ParseText([]byte("/$FIL/a//b.fcs/$COM/ends with/////"))
	require.NoError(t, err)
	assert.Equal(t, "a/b.fcs", kw.Value("$FIL"))
	assert.Equal(t, "ends with//", kw.Value("$COM"))
}

func TestParseText_OtherDelimiter(t *testing.T) {
	kw, err := fcs.ParseText([]byte("|$P1S|CD3 || CD4|$P1N|FL1|"))
	require.NoError(t, err)
	assert.Equal(t, "CD3 | CD4", kw.Value("$P1S"))
	assert.Equal(t, byte('|'), kw.Delimiter())
}

func TestParseText_MissingFinalDelimiter(t *testing.T) {
	kw, err := fcs.ParseText([]byte("/$PAR/2/$TOT/5"))
	require.NoError(t, err)
	assert.Equal(t, "5", kw.Value("$TOT"))
}

func TestParseText_TrimsSpaces(t *testing.T) {
	kw, err := fcs.ParseText([]byte("/ $CYT / LSRII  /"))
	require.NoError(t, err)
	assert.Equal(t, "LSRII", kw.Value("$CYT"))
	assert.Equal(t, []string{"$CYT"}, kw.Keys())
}

func TestParseText_DuplicateFirstWins(t *testing.T) {
	kw, err := fcs.ParseText([]byte("/$CYT/first/$PAR/1/$cyt/second/"))
	require.NoError(t, err)
	assert.Equal(t, "first", kw.Value("$CYT"))
	assert.Equal(t, 2, kw.Len())
	assert.Equal(t, []string{"$cyt"}, kw.Duplicates())
	assert.Equal(t, []fcs.Keyword{{Key: "$CYT", Value: "first"}, {Key: "$PAR", Value: "1"}}, kw.All())
}

func TestParseText_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"delimiter only", "/"},
		{"odd fields", "/$PAR/2/$TOT/"},
		{"single keyword", "/$PAR/"},
		{"empty keyword", "/ /2/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fcs.ParseText([]byte(tt.text))
			require.ErrorIs(t, err, fcs.ErrInvalidText)
		})
	}
}
