package timefmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClock(t *testing.T) {
	tests := []struct {
		seconds  float64
		expected string
	}{
		{0, "0:00"},
		{9.4, "0:09"},
		{59.999, "0:59"},
		{60, "1:00"},
		{95, "1:35"},
		{600, "10:00"},
		{3599, "59:59"},
		{3600, "1:00:00"},
		{7325, "2:02:05"},
		{-5, "0:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, Clock(tt.seconds), "Clock(%v)", tt.seconds)
	}
}

func TestFileToken(t *testing.T) {
	tests := []struct {
		seconds  float64
		expected string
	}{
		{0, "0m00s"},
		{95, "1m35s"},
		{61.9, "1m01s"},
		{600, "10m00s"},
		{-1, "0m00s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, FileToken(tt.seconds), "FileToken(%v)", tt.seconds)
	}
}

func TestASS(t *testing.T) {
	tests := []struct {
		seconds  float64
		expected string
	}{
		{0, "0:00:00.00"},
		{1.5, "0:00:01.50"},
		{62.25, "0:01:02.25"},
		{3661.07, "1:01:01.07"},
		{-2, "0:00:00.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, ASS(tt.seconds), "ASS(%v)", tt.seconds)
	}
}
