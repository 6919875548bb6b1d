package ebitenbackend

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// scriptStep is a single action in a frame script.
type scriptStep struct {
	Action string `yaml:"action"`
	Label  string `yaml:"label,omitempty"`
	Frames int    `yaml:"frames,omitempty"`
	Value  int    `yaml:"value,omitempty"`
	On     bool   `yaml:"on,omitempty"`
}

type scriptFile struct {
	Steps      []scriptStep `yaml:"steps"`
	ExitOnDone bool         `yaml:"exitOnDone"`
}

// Script sequences screenshots and stage settings across frames for
// automated visual checks. One step runs per tick.
//
// Actions: "screenshot" (label), "wait" (frames), "fps" (value sets the
// target frame rate) and "debug" (on).
type Script struct {
	steps     []scriptStep
	cursor    int
	waitCount int
	done      bool
	// ExitOnDone stops the game once every step ran and pending
	// screenshots are written.
	ExitOnDone bool
}

// LoadScript parses a YAML (or JSON) frame script.
func LoadScript(data []byte) (*Script, error) {
	var f scriptFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if len(f.Steps) == 0 {
		return nil, fmt.Errorf("parse script: no steps")
	}
	for i, st := range f.Steps {
		switch st.Action {
		case "screenshot", "wait", "fps", "debug":
		default:
			return nil, fmt.Errorf("parse script: step %d: unknown action %q", i, st.Action)
		}
	}
	return &Script{steps: f.Steps, ExitOnDone: f.ExitOnDone}, nil
}

// Done reports whether every step ran.
func (s *Script) Done() bool { return s.done }

// step advances the script by one tick.
func (s *Script) step(g *Game) {
	if s.done {
		return
	}
	if s.waitCount > 0 {
		s.waitCount--
		return
	}
	if s.cursor >= len(s.steps) {
		s.done = true
		return
	}

	st := s.steps[s.cursor]
	s.cursor++

	switch st.Action {
	case "screenshot":
		g.Screenshot(st.Label)
	case "wait":
		if st.Frames > 0 {
			s.waitCount = st.Frames - 1 // this tick counts as one
		}
	case "fps":
		g.stage.SetTargetFPS(st.Value)
	case "debug":
		g.stage.SetDebugMode(st.On)
	}

	if s.cursor >= len(s.steps) && s.waitCount == 0 {
		s.done = true
	}
}
