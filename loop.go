package lantern

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"
)

// Frame runs one frame at time now: it applies finished text layouts and
// texture loads, advances animations by the time since the previous frame,
// runs the update pass and renders if anything changed. A frame with
// nothing to draw marks the stage idle; the idle event fires once per idle
// period and runs an idle texture cleanup. Periodic cleanup and FPS
// reporting run on their configured intervals either way. Frame reports
// whether it rendered. Listener panics are logged and do not escape Frame;
// any other panic abandons the rest of the frame and is logged at Error.
func (s *Stage) Frame(now time.Time) (rendered bool) {
	if s.closed {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			Logger().Error("lantern: frame failed", "frame", s.frames, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			rendered = false
			s.requestRender()
		}
	}()
	var dt float64
	if !s.lastFrame.IsZero() {
		dt = float64(now.Sub(s.lastFrame)) / float64(time.Millisecond)
		if dt < 0 {
			dt = 0
		}
	}
	s.lastFrame = now
	s.frames++
	if s.beforeFrame != nil {
		callListener("beforeFrame", s.beforeFrame, now)
	}

	var t0 time.Time
	if s.debug {
		t0 = time.Now()
	}
	s.processText()
	s.textures.ProcessLoads(now)
	s.animations.update(dt)

	// Changes made by listeners during this frame schedule the next one.
	requested := s.renderRequested
	s.renderRequested = false
	changed := s.updateTree()
	if s.debug {
		s.stats.updateTime = time.Since(t0)
	}

	rendered = changed || requested
	if rendered {
		s.idle = false
		s.render()
		s.fps.rendered()
		s.events.emit(StageEventFrameTick, StageEvent{Type: StageEventFrameTick, Delta: dt})
		if s.debug {
			s.debugLog()
		}
	} else if !s.idle && s.animations.Len() == 0 {
		s.idle = true
		s.events.emit(StageEventIdle, StageEvent{Type: StageEventIdle})
		s.textures.Cleanup(CleanupIdle)
	}

	if iv := s.settings.TextureMemory.CleanupInterval.Duration(); iv > 0 && now.Sub(s.lastCleanup) >= iv {
		s.lastCleanup = now
		s.textures.Cleanup(CleanupPeriodic)
	}
	s.textures.maintain()

	if fps, ok := s.fps.tick(now); ok {
		s.events.emit(StageEventFPSUpdate, StageEvent{Type: StageEventFPSUpdate, FPS: fps})
	}
	return rendered
}

// TargetFPS returns the frame rate cap; 0 means one frame per refresh.
func (s *Stage) TargetFPS() int { return s.targetFPS }

// SetTargetFPS caps the frame rate. 0 removes the cap.
func (s *Stage) SetTargetFPS(fps int) {
	if fps < 0 {
		fps = 0
	}
	s.targetFPS = fps
}

// Run drives Frame until ctx is done or the stage is closed. Each value
// received from refresh is a display refresh tick. A nil refresh channel
// uses a timer at the target frame rate (60 when uncapped). With a target
// frame rate set, Run waits out the rest of the frame interval after each
// frame before it takes the next tick.
func (s *Stage) Run(ctx context.Context, refresh <-chan time.Time) error {
	if s.closed {
		return ErrStageStopped
	}
	var ticker *time.Ticker
	interval := s.frameInterval()
	if refresh == nil {
		ticker = time.NewTicker(tickInterval(interval))
		defer ticker.Stop()
		refresh = ticker.C
	}
	var delay *time.Timer
	defer func() {
		if delay != nil {
			delay.Stop()
		}
	}()
	Logger().Info("lantern: frame loop started", "targetFPS", s.targetFPS)
	defer Logger().Info("lantern: frame loop stopped", "frames", s.frames)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now, ok := <-refresh:
			if !ok {
				return nil
			}
			if s.closed {
				return ErrStageStopped
			}
			if iv := s.frameInterval(); iv != interval {
				interval = iv
				if ticker != nil {
					ticker.Reset(tickInterval(interval))
				}
			}
			start := time.Now()
			s.Frame(now)
			if interval <= 0 {
				continue
			}
			wait := interval - time.Since(start)
			if wait <= 0 {
				continue
			}
			if delay == nil {
				delay = time.NewTimer(wait)
			} else {
				delay.Reset(wait)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-delay.C:
			}
		}
	}
}

func (s *Stage) frameInterval() time.Duration {
	if s.targetFPS <= 0 {
		return 0
	}
	return time.Second / time.Duration(s.targetFPS)
}

func tickInterval(frame time.Duration) time.Duration {
	if frame <= 0 {
		return time.Second / 60
	}
	return frame
}
