package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTimestamp(t *testing.T, s string) Timestamp {
	t.Helper()
	ts, err := ParseTimestamp(s)
	require.NoError(t, err)
	return ts
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		input  string
		wantMs int64
		ok     bool
	}{
		{"00:00:00.00", 0, true},
		{"00:10:00.00", 600000, true},
		{"01:02:03.45", 3723450, true},
		{"99:59:59.99", 359999990, true},
		{"00:60:00.00", 0, false},
		{"00:00:61.00", 0, false},
		{"0:00:00.00", 0, false},
		{"00:00:00.000", 0, false},
		{"N/A", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			ts, err := ParseTimestamp(tt.input)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrMalformedTimestamp)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMs, ts.Milliseconds())
			assert.Equal(t, tt.input, ts.String())
		})
	}
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "00:00:00", FormatClock(0))
	assert.Equal(t, "00:09:40", FormatClock(580))
	assert.Equal(t, "01:00:01", FormatClock(3601))
	assert.Equal(t, "00:00:00", FormatClock(-5))
}

func TestClassify(t *testing.T) {
	t.Run("duration", func(t *testing.T) {
		facts, err := Classify("  Duration: 00:42:17.36, start: 0.000000, bitrate: 0 kb/s")
		require.NoError(t, err)
		require.Len(t, facts, 1)
		assert.Equal(t, DurationFact{Total: mustTimestamp(t, "00:42:17.36")}, facts[0])
	})

	t.Run("bitrate", func(t *testing.T) {
		facts, err := Classify("      variant_bitrate : 2149280")
		require.NoError(t, err)
		require.Equal(t, []Fact{BitrateFact{BitsPerSecond: 2149280}}, facts)
	})

	t.Run("progress", func(t *testing.T) {
		line := "frame= 1234 fps=0.0 q=-1.0 size=   10240KiB time=00:01:02.50 bitrate=1342.2kbits/s speed=12.4x"
		facts, err := Classify(line)
		require.NoError(t, err)
		require.Equal(t, []Fact{ProgressFact{Time: mustTimestamp(t, "00:01:02.50"), KiB: 10240}}, facts)
	})

	t.Run("progress order independent", func(t *testing.T) {
		facts, err := Classify("time=00:00:05.00 size=512KiB")
		require.NoError(t, err)
		require.Equal(t, []Fact{ProgressFact{Time: mustTimestamp(t, "00:00:05.00"), KiB: 512}}, facts)

		facts, err = Classify("size=512KiB time=00:00:05.00")
		require.NoError(t, err)
		require.Equal(t, []Fact{ProgressFact{Time: mustTimestamp(t, "00:00:05.00"), KiB: 512}}, facts)
	})

	t.Run("progress needs both markers", func(t *testing.T) {
		facts, err := Classify("frame=10 time=00:00:05.00 bitrate=N/A")
		assert.NoError(t, err)
		assert.Empty(t, facts)

		facts, err = Classify("frame=10 size=512KiB bitrate=N/A")
		assert.NoError(t, err)
		assert.Empty(t, facts)
	})

	t.Run("progress with time N/A", func(t *testing.T) {
		facts, err := Classify("size=       0KiB time=N/A bitrate=N/A speed=N/A")
		assert.ErrorIs(t, err, ErrMalformedTimestamp)
		assert.Empty(t, facts)
	})

	t.Run("malformed duration", func(t *testing.T) {
		facts, err := Classify("  Duration: N/A, start: 1.4, bitrate: N/A")
		assert.ErrorIs(t, err, ErrMalformedDuration)
		assert.Empty(t, facts)

		_, err = Classify("  Duration: 00:75:00.00, start: 0")
		assert.ErrorIs(t, err, ErrMalformedDuration)
		assert.ErrorIs(t, err, ErrMalformedTimestamp)
	})

	t.Run("unrelated lines", func(t *testing.T) {
		for _, line := range []string{
			"",
			"   ",
			"ffmpeg version 7.0.1 Copyright (c) 2000-2024 the FFmpeg developers",
			"Stream #0:0: Video: h264 (High), yuv420p, 1920x1080",
			"[hls @ 0x5581] Opening 'https://cdn.example/seg-1.ts' for reading",
		} {
			facts, err := Classify(line)
			assert.NoError(t, err, line)
			assert.Empty(t, facts, line)
		}
	})

	t.Run("several facts on one line", func(t *testing.T) {
		facts, err := Classify("Duration: 00:01:00.00 variant_bitrate : 800 time=00:00:01.00 size=1KiB")
		require.NoError(t, err)
		require.Len(t, facts, 3)
		assert.IsType(t, DurationFact{}, facts[0])
		assert.IsType(t, BitrateFact{}, facts[1])
		assert.IsType(t, ProgressFact{}, facts[2])
	})
}
