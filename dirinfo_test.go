// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package cryptengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDebugEnv(t *testing.T) {
	cases := []struct {
		raw        string
		wantLevel  int
		wantHasSink bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{"9", 9, false},
		{"9;/tmp/gpgme.log", 9, true},
		{"not-a-level", 0, false},
	}
	for _, c := range cases {
		level, sink := ParseDebugEnv(c.raw)
		assert.Equal(t, c.wantLevel, level, "raw=%q", c.raw)
		assert.Equal(t, c.wantHasSink, sink != "", "raw=%q", c.raw)
	}
}

func TestDirInfo_UnknownKey(t *testing.T) {
	_, err := DirInfo("not-a-real-key")
	assert.Error(t, err)
}

func TestDirInfo_KnownKeyNeverErrors(t *testing.T) {
	v, err := DirInfo("gpg-name")
	assert.NoError(t, err)
	assert.NotEmpty(t, v)
}
