package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	events []Event
}

func (r *recorder) Observe(e Event) { r.events = append(r.events, e) }

func (r *recorder) kinds() []EventKind {
	var k []EventKind
	for _, e := range r.events {
		k = append(k, e.Kind)
	}
	return k
}

func (r *recorder) progress() []Event {
	var out []Event
	for _, e := range r.events {
		if e.Kind == EventProgress {
			out = append(out, e)
		}
	}
	return out
}

func newTracker(cfg Config) (*Tracker, *recorder) {
	rec := &recorder{}
	cfg.Observer = rec
	return New(cfg), rec
}

func feed(t *Tracker, lines ...string) {
	for _, l := range lines {
		t.ConsumeLine(l)
	}
}

const (
	durationMinute = "  Duration: 00:01:00.00, start: 0.000000, bitrate: 0 kb/s"
	bitrate8M      = "      variant_bitrate : 8000000"
)

func TestTrackerScenario(t *testing.T) {
	tr, rec := newTracker(Config{})

	feed(tr,
		durationMinute,
		bitrate8M,
		"frame=  750 fps=0.0 q=-1.0 size=     500KiB time=00:00:30.00 bitrate= 136.5kbits/s speed=60x",
		"frame=  775 fps=0.0 q=-1.0 size=     600KiB time=00:00:31.00 bitrate= 158.5kbits/s speed=61x",
	)

	require.Equal(t, []EventKind{EventDuration, EventProgress, EventProgress}, rec.kinds())
	assert.Equal(t, "00:01:00.00", rec.events[0].Duration.String())

	p := rec.progress()
	assert.InDelta(t, 50, p[0].Percent, 1e-9)
	assert.Equal(t, DefaultRemaining, p[0].Remaining)

	// 100 KiB/s, 8000000*60/8/1024 = 58593.75 KiB, (58593.75-600)/100 = 579.94s
	assert.InDelta(t, 51.6667, p[1].Percent, 1e-3)
	assert.Equal(t, "00:09:40", p[1].Remaining)

	s := tr.Snapshot()
	assert.Equal(t, PhaseStreaming, s.Phase)
	assert.Equal(t, "00:09:40", s.Remaining)
	assert.Equal(t, int64(600), s.Last.KiB)
	assert.Equal(t, uint64(2), s.Samples)
}

func TestTrackerHalfway(t *testing.T) {
	tr, rec := newTracker(Config{})
	feed(tr,
		"  Duration: 00:10:00.00, start: 0.000000",
		bitrate8M,
		"size=1024KiB time=00:05:00.00",
	)
	p := rec.progress()
	require.Len(t, p, 1)
	assert.Equal(t, 50.0, p[0].Percent)
}

func TestTrackerDurationFirstWins(t *testing.T) {
	tr, rec := newTracker(Config{})
	feed(tr,
		durationMinute,
		"  Duration: 00:20:00.00, start: 0.000000",
		"  Duration: 00:00:30.00, start: 0.000000",
	)
	s := tr.Snapshot()
	assert.Equal(t, "00:01:00.00", s.Duration.String())
	assert.Equal(t, []EventKind{EventDuration}, rec.kinds())
}

func TestTrackerBitrateLastWins(t *testing.T) {
	tr, rec := newTracker(Config{})
	feed(tr,
		durationMinute,
		bitrate8M,
		"size=500KiB time=00:00:30.00",
		"      variant_bitrate : 4000000",
		"size=600KiB time=00:00:31.00",
	)

	assert.Equal(t, int64(4000000), tr.Snapshot().BitsPerSecond)
	// 4000000*60/8/1024 = 29296.875 KiB, (29296.875-600)/100 = 286.97s
	p := rec.progress()
	require.Len(t, p, 2)
	assert.Equal(t, "00:04:47", p[1].Remaining)
}

func TestTrackerDropsSamplesWithoutPrerequisites(t *testing.T) {
	tr, rec := newTracker(Config{})

	assert.False(t, tr.ConsumeLine("size=100KiB time=00:00:01.00"))
	feed(tr, durationMinute)
	assert.False(t, tr.ConsumeLine("size=200KiB time=00:00:02.00"))

	assert.Equal(t, []EventKind{EventDuration}, rec.kinds())
	s := tr.Snapshot()
	assert.Equal(t, PhaseAwaitingBitrate, s.Phase)
	assert.Zero(t, s.Samples)

	feed(tr, bitrate8M)
	assert.True(t, tr.ConsumeLine("size=300KiB time=00:00:03.00"))
	assert.Equal(t, DefaultRemaining, tr.Snapshot().Remaining)
}

func TestTrackerParseCountsEverySample(t *testing.T) {
	tr, _ := newTracker(Config{})

	// dropped samples still count as output from FFmpeg
	assert.Equal(t, uint64(1), tr.Parse("size=100KiB time=00:00:01.00"))
	feed(tr, durationMinute)
	assert.Equal(t, uint64(1), tr.Parse("size=200KiB time=00:00:02.00"))
	assert.Zero(t, tr.Snapshot().Samples)

	feed(tr, bitrate8M, "size=58000KiB time=00:01:00.00")
	require.True(t, tr.Complete())
	assert.Equal(t, uint64(1), tr.Parse("size=58600KiB time=00:01:01.00"))

	assert.Zero(t, tr.Parse("      variant_bitrate : 8000000"))
	assert.Zero(t, tr.Parse("  Duration: 00:01:00.00, start: 0"))
	assert.Zero(t, tr.Parse("Press [q] to stop, [?] for help"))
}

func TestTrackerIgnoresZeroBitrate(t *testing.T) {
	tr, rec := newTracker(Config{})
	feed(tr, durationMinute, "      variant_bitrate : 0")

	assert.False(t, tr.Snapshot().BitrateKnown)
	assert.False(t, tr.ConsumeLine("size=100KiB time=00:00:01.00"))

	feed(tr, bitrate8M, "size=200KiB time=00:00:02.00", "size=300KiB time=00:00:03.00")
	p := rec.progress()
	require.Len(t, p, 2)
	assert.NotEqual(t, "00:00:00", p[1].Remaining)
}

func TestTrackerStalledSampleKeepsETA(t *testing.T) {
	tr, rec := newTracker(Config{})
	feed(tr,
		durationMinute,
		bitrate8M,
		"size=500KiB time=00:00:30.00",
		"size=600KiB time=00:00:31.00",
		// duplicate
		"size=600KiB time=00:00:31.00",
		// time advanced, bytes did not
		"size=600KiB time=00:00:32.00",
		// regressed
		"size=700KiB time=00:00:31.50",
	)

	p := rec.progress()
	require.Len(t, p, 5)
	for _, e := range p[1:] {
		assert.Equal(t, "00:09:40", e.Remaining)
	}
}

func TestTrackerETANeverNegative(t *testing.T) {
	tr, rec := newTracker(Config{})
	feed(tr,
		durationMinute,
		// 8192*60/8/1024 = 60 KiB expected in total
		"      variant_bitrate : 8192",
		"size=500KiB time=00:00:30.00",
		"size=600KiB time=00:00:31.00",
	)
	p := rec.progress()
	require.Len(t, p, 2)
	assert.Equal(t, "00:00:00", p[1].Remaining)
}

func TestTrackerCompletesOnce(t *testing.T) {
	tr, rec := newTracker(Config{})
	feed(tr,
		durationMinute,
		bitrate8M,
		"size=500KiB time=00:00:30.00",
		"size=58000KiB time=00:01:00.00",
	)
	require.Equal(t, []EventKind{EventDuration, EventProgress, EventProgress, EventComplete}, rec.kinds())
	assert.True(t, tr.Complete())

	before := tr.Snapshot()
	assert.Equal(t, PhaseComplete, before.Phase)
	assert.False(t, tr.ConsumeLine("size=58600KiB time=00:01:01.00"))
	feed(tr, "      variant_bitrate : 1", "  Duration: 00:00:10.00, start: 0")

	assert.Len(t, rec.events, 4)
	assert.Equal(t, before, tr.Snapshot())
}

func TestTrackerClampsPercent(t *testing.T) {
	tr, rec := newTracker(Config{})
	feed(tr,
		durationMinute,
		bitrate8M,
		"size=500KiB time=00:02:00.00",
	)
	p := rec.progress()
	require.Len(t, p, 1)
	assert.Equal(t, 100.0, p[0].Percent)
	assert.True(t, tr.Complete())
}

func TestTrackerPercentMonotonic(t *testing.T) {
	tr, rec := newTracker(Config{})
	feed(tr, durationMinute, bitrate8M)
	for _, l := range []string{
		"size=10KiB time=00:00:01.00",
		"size=20KiB time=00:00:01.00",
		"size=30KiB time=00:00:12.34",
		"size=40KiB time=00:00:40.00",
		"size=50KiB time=00:00:59.99",
	} {
		feed(tr, l)
	}
	last := 0.0
	for _, e := range rec.progress() {
		assert.GreaterOrEqual(t, e.Percent, last)
		assert.LessOrEqual(t, e.Percent, 100.0)
		last = e.Percent
	}
	assert.False(t, tr.Complete())
}

func TestTrackerIgnoresUnrelatedLines(t *testing.T) {
	tr, rec := newTracker(Config{})
	feed(tr, durationMinute, bitrate8M, "size=500KiB time=00:00:30.00")
	before := tr.Snapshot()
	n := len(rec.events)

	feed(tr,
		"",
		"Input #0, hls, from 'https://cdn.example/master.m3u8':",
		"  Duration: N/A, start: 0.000000, bitrate: N/A",
		"size=N/AKiB time=00:00:40.00",
		"size=700KiB time=N/A",
	)

	assert.Equal(t, before, tr.Snapshot())
	assert.Len(t, rec.events, n)
}

func TestTrackerMalformedDurationThenValid(t *testing.T) {
	tr, _ := newTracker(Config{})
	feed(tr, "  Duration: N/A, start: 0", durationMinute)
	s := tr.Snapshot()
	assert.True(t, s.DurationKnown)
	assert.Equal(t, int64(60000), s.Duration.Milliseconds())
}

func TestTrackerIgnoresZeroDuration(t *testing.T) {
	tr, _ := newTracker(Config{})
	feed(tr, "  Duration: 00:00:00.00, start: 0", durationMinute)
	assert.Equal(t, "00:01:00.00", tr.Snapshot().Duration.String())
}

func TestTrackerBarBeforeBitrate(t *testing.T) {
	tr, rec := newTracker(Config{BarBeforeBitrate: true})
	feed(tr,
		durationMinute,
		"size=400KiB time=00:00:29.00",
		"size=500KiB time=00:00:30.00",
	)
	p := rec.progress()
	require.Len(t, p, 2)
	assert.Equal(t, DefaultRemaining, p[1].Remaining)
	assert.False(t, tr.Snapshot().BitrateKnown)

	feed(tr, bitrate8M, "size=600KiB time=00:00:31.00")
	p = rec.progress()
	require.Len(t, p, 3)
	assert.Equal(t, "00:09:40", p[2].Remaining)
}

func TestMultiObserver(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	tr := New(Config{Observer: Multi(a, nil, b)})
	feed(tr, durationMinute)
	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}
