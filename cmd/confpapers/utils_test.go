package main

import (
	"testing"

	"github.com/pevans/confpapers/corpus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseYears(t *testing.T) {
	tests := []struct {
		input    string
		wantFrom int
		wantTo   int
		wantErr  bool
	}{
		{input: "2019", wantFrom: 2019, wantTo: 2019},
		{input: "2008-2010", wantFrom: 2008, wantTo: 2010},
		{input: " 2008 - 2010 ", wantFrom: 2008, wantTo: 2010},
		{input: "2010-2010", wantFrom: 2010, wantTo: 2010},
		{input: "2010-2008", wantErr: true},
		{input: "2010-", wantErr: true},
		{input: "-2010", wantErr: true},
		{input: "twenty", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			from, to, err := parseYears(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFrom, from)
			assert.Equal(t, tt.wantTo, to)
		})
	}
}

func TestParseConferences(t *testing.T) {
	confs, err := parseConferences([]string{"icml", "NIPS,iclr"})
	require.NoError(t, err)
	assert.Equal(t, []corpus.Conference{corpus.ICML, corpus.NeurIPS, corpus.ICLR}, confs)

	confs, err = parseConferences(nil)
	require.NoError(t, err)
	assert.Empty(t, confs)

	_, err = parseConferences([]string{"AAAI"})
	assert.ErrorIs(t, err, corpus.ErrUnknownConference)
}

func TestFormatSpan(t *testing.T) {
	assert.Equal(t, "2006-2019", formatSpan(2006, 2019))
	assert.Equal(t, "2020-", formatSpan(2020, 0))
	assert.Equal(t, "2020", formatSpan(2020, 2020))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ünïcödé...", truncate("ünïcödéünïcödé", 10))
}
