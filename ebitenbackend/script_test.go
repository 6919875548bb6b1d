package ebitenbackend

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScriptYAML(t *testing.T) {
	s, err := LoadScript([]byte(`
exitOnDone: true
steps:
  - action: wait
    frames: 3
  - action: screenshot
    label: home
`))
	require.NoError(t, err)
	assert.True(t, s.ExitOnDone)
	assert.Len(t, s.steps, 2)
	assert.Equal(t, 3, s.steps[0].Frames)
	assert.Equal(t, "home", s.steps[1].Label)
}

func TestLoadScriptJSON(t *testing.T) {
	s, err := LoadScript([]byte(`{"steps": [{"action": "fps", "value": 30}]}`))
	require.NoError(t, err)
	assert.Equal(t, 30, s.steps[0].Value)
}

func TestLoadScriptErrors(t *testing.T) {
	_, err := LoadScript([]byte(`steps: []`))
	assert.Error(t, err)
	_, err = LoadScript([]byte(`steps: [{action: jump}]`))
	assert.ErrorContains(t, err, "unknown action")
	_, err = LoadScript([]byte(`steps: [`))
	assert.Error(t, err)
}

func TestScriptStepsAndWaits(t *testing.T) {
	r := NewRenderer(320, 180)
	stage := newTestStage(t, r)
	g := NewGame(stage, r, RunConfig{})

	s, err := LoadScript([]byte(`
steps:
  - action: fps
    value: 30
  - action: wait
    frames: 2
  - action: debug
    on: true
  - action: screenshot
    label: done
`))
	require.NoError(t, err)

	s.step(g) // fps
	assert.Equal(t, 30, stage.TargetFPS())
	s.step(g) // wait, counts as one
	s.step(g) // second wait frame
	assert.False(t, stage.DebugMode())
	s.step(g) // debug
	assert.True(t, stage.DebugMode())
	assert.False(t, s.Done())
	s.step(g) // screenshot
	assert.True(t, s.Done())
	assert.Equal(t, []string{"done"}, g.screenshotQueue)
}

func TestSanitizeLabel(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", "unlabeled"},
		{"  ", "unlabeled"},
		{"home-screen.v2", "home-screen.v2"},
		{"a b/c", "a_b_c"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeLabel(tt.in), "sanitizeLabel(%q)", tt.in)
	}
}

func TestUnpremultiply(t *testing.T) {
	pixels := []byte{
		128, 0, 0, 128,
		255, 255, 255, 255,
		0, 0, 0, 0,
	}
	img := unpremultiply(pixels, 3, 1)
	assert.Equal(t, image.Rect(0, 0, 3, 1), img.Bounds())
	assert.Equal(t, []byte{255, 0, 0, 128}, img.Pix[0:4])
	assert.Equal(t, []byte{255, 255, 255, 255}, img.Pix[4:8])
	assert.Equal(t, []byte{0, 0, 0, 0}, img.Pix[8:12])
}
