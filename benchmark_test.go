package lantern

import (
	"image"
	"testing"
	"time"
)

// benchRenderer accepts every call and keeps nothing, so frames measure only
// the stage.
type benchRenderer struct{ quads int }

func (benchRenderer) UploadTexture(*Texture, image.Image) error   { return nil }
func (benchRenderer) FreeTexture(*Texture)                        {}
func (benchRenderer) CreateRenderTarget(*Texture, int, int) error { return nil }
func (benchRenderer) PrepareShader(*ShaderType) error             { return nil }
func (benchRenderer) BeginFrame(*Texture, Color)                  {}
func (r *benchRenderer) DrawBatch(b *Batch)                       { r.quads += len(b.Quads) }
func (benchRenderer) EndFrame()                                   {}

// setupBenchStage creates a stage with n 32x32 nodes laid out on a grid.
func setupBenchStage(b *testing.B, n int) (*Stage, []*Node) {
	b.Helper()
	s, err := NewStage(testSettings(), &benchRenderer{}, WithSyncTextureLoads(), WithStartTime(testEpoch))
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(s.Close)
	nodes := make([]*Node, n)
	for i := range nodes {
		p := DefaultNodeProps()
		p.Parent = s.Root()
		p.X = float64(i%100) * 40
		p.Y = float64(i/100) * 40
		p.Width, p.Height = 32, 32
		p.Color = ColorWhite
		nodes[i] = s.CreateNode(p)
	}
	return s, nodes
}

func BenchmarkFrame_10000Nodes_Static(b *testing.B) {
	s, _ := setupBenchStage(b, 10000)
	now := testEpoch
	s.Frame(now) // warmup

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		now = now.Add(16 * time.Millisecond)
		s.Frame(now)
	}
}

func BenchmarkFrame_10000Nodes_Rotating(b *testing.B) {
	s, nodes := setupBenchStage(b, 10000)
	now := testEpoch
	s.Frame(now)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		for _, n := range nodes {
			n.SetRotation(n.Rotation() + 0.01)
		}
		now = now.Add(16 * time.Millisecond)
		s.Frame(now)
	}
}

func BenchmarkFrame_DeepTree(b *testing.B) {
	s, err := NewStage(testSettings(), &benchRenderer{}, WithSyncTextureLoads(), WithStartTime(testEpoch))
	if err != nil {
		b.Fatal(err)
	}
	defer s.Close()
	parent := s.Root()
	for i := 0; i < 200; i++ {
		p := DefaultNodeProps()
		p.Parent = parent
		p.X, p.Y = 1, 1
		p.Width, p.Height = 10, 10
		p.Color = ColorWhite
		parent = s.CreateNode(p)
	}
	now := testEpoch
	s.Frame(now)
	root := s.Root().Children()[0]

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		root.SetX(float64(i % 50))
		now = now.Add(16 * time.Millisecond)
		s.Frame(now)
	}
}

func BenchmarkAppendBatches(b *testing.B) {
	tex := &Texture{id: 1}
	quads := make([]Quad, 1000)
	for i := range quads {
		quads[i] = Quad{NodeID: NodeID(i + 1)}
		if i%10 == 0 {
			quads[i].Texture = tex
		}
	}
	var buf []Batch

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		buf = appendBatches(buf[:0], nil, quads)
	}
}
