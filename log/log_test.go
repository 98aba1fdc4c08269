package log

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

var (
	sampleID       = uint64(3)
	sampleHash     = []byte("123")
	sampleIDs      = []uint64{10, 0, 7}
	sampleDuration = time.Second
	sampleTime     = time.Unix(12345678, 0)

	errSample = errors.New("some error")
)

func doLogs() {
	// Some sample logs from existing code.
	Infof("tracking write %x of campaign %d", sampleHash, sampleID)
	Debugw("contract event", "kind", "DonationMade", "campaignID", sampleID)
	Errorf("failed to read campaign: %v", errSample)
	Warnw("various types",
		"ids", sampleIDs,
		"duration", sampleDuration,
		"time", sampleTime,
	)
	Error(errSample)
}

func TestCheckInvalidChars(t *testing.T) {
	t.Cleanup(func() { panicOnInvalidChars = false })

	v := []byte{'h', 'e', 'l', 'l', 'o', 0xff, 'w', 'o', 'r', 'l', 'd'}
	panicOnInvalidChars = false
	Init("debug", "stderr", nil)
	Debugf("%s", v)
	// should not panic since env var is false. if it panics, test will fail

	// now enable panic and try again: should recover() and never reach t.Errorf()
	panicOnInvalidChars = true
	Init("debug", "stderr", nil)
	defer func() { recover() }()
	Debugf("%s", v)
	t.Errorf("Debugf(%s) should have panicked because of invalid char", v)
}

func TestErrorOutput(t *testing.T) {
	c := qt.New(t)
	t.Cleanup(func() { Init(LogLevelError, "stderr", nil) })

	logTestWriter = io.Discard
	var errs bytes.Buffer
	Init(LogLevelDebug, logTestWriterName, &errs)
	c.Assert(Level(), qt.Equals, LogLevelDebug)

	Infow("campaign created", "campaignID", sampleID)
	c.Assert(errs.String(), qt.Equals, "")
	Warnw("event subscription failed", "error", errSample.Error())
	Errorw(errSample, "failed to store last block")
	c.Assert(errs.String(), qt.Contains, "event subscription failed")
	c.Assert(errs.String(), qt.Contains, "failed to store last block")
	c.Assert(errs.String(), qt.Contains, "some error")

	Init(LogLevelWarn, logTestWriterName, nil)
	c.Assert(Level(), qt.Equals, LogLevelWarn)
	c.Assert(func() { Init("verbose", "stderr", nil) }, qt.PanicMatches, `invalid log level: "verbose"`)
}

func BenchmarkLogger(b *testing.B) {
	logTestWriter = io.Discard // to not grow a buffer
	Init("debug", logTestWriterName, nil)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		doLogs()
	}
}
