package lantern

import "time"

// fpsCounter counts rendered frames and reports the rate once per interval.
type fpsCounter struct {
	interval time.Duration
	since    time.Time
	frames   int
	last     float64
}

func newFPSCounter(interval time.Duration, now time.Time) fpsCounter {
	return fpsCounter{interval: interval, since: now}
}

// rendered counts one drawn frame.
func (f *fpsCounter) rendered() { f.frames++ }

// tick returns the frame rate over the elapsed interval and true once the
// interval has passed. Idle periods count toward the interval, so an idle
// stage reports 0.
func (f *fpsCounter) tick(now time.Time) (float64, bool) {
	if f.interval <= 0 {
		return 0, false
	}
	elapsed := now.Sub(f.since)
	if elapsed < f.interval {
		return 0, false
	}
	f.last = float64(f.frames) / elapsed.Seconds()
	f.frames = 0
	f.since = now
	return f.last, true
}

// FPS returns the rate reported by the last fpsUpdate event.
func (s *Stage) FPS() float64 { return s.fps.last }
