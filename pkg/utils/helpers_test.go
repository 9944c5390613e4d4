package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"10", 10, true},
		{" $1,200.50 ", 1200.5, true},
		{"€ 30", 30, true},
		{"£7", 7, true},
		{"abc", 0, false},
		{"", 0, false},
		{"Inf", 0, false},
		{"-2.5", -2.5, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseMoney(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 5*time.Minute, ParseDuration(""))
	assert.Equal(t, 5*time.Minute, ParseDuration("nope"))
	assert.Equal(t, 5*time.Minute, ParseDuration("-1s"))
	assert.Equal(t, 30*time.Second, ParseDuration("30s"))
}

func TestSafeFileName(t *testing.T) {
	assert.Equal(t, "top10_games", SafeFileName("top10_games"))
	assert.Equal(t, "group-by-mean_price", SafeFileName("group-by-mean:price"))
	assert.Equal(t, "passwd", SafeFileName("../../etc/passwd"))
	assert.Equal(t, "result", SafeFileName(""))
}

func TestOutputManager(t *testing.T) {
	base := t.TempDir()
	om := NewOutputManager(base)

	dir, err := om.CreateRunOutputDir("run-1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "run-1"), dir)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
