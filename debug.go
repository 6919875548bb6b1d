package lantern

// debugLog logs timing and draw stats for the frame.
func (s *Stage) debugLog() {
	st := s.stats
	hits, misses, size := s.shaders.UniformCacheStats()
	Logger().Debug("lantern: frame",
		"frame", s.frames,
		"update", st.updateTime,
		"collect", st.collectTime,
		"submit", st.submitTime,
		"quads", st.quads,
		"batches", st.batches,
		"passes", st.passes,
		"animations", s.animations.Len(),
		"textures", s.textures.Len(),
		"textureBytes", s.textures.memory.Used(),
		"uniformHits", hits,
		"uniformMisses", misses,
		"uniformCached", size,
	)
}

// debugMaxTreeDepth is the depth beyond which debug mode warns.
const debugMaxTreeDepth = 32

func debugCheckTreeDepth(n *Node) {
	depth := 0
	for p := n; p != nil; p = p.parent {
		depth++
	}
	if depth > debugMaxTreeDepth {
		Logger().Warn("lantern: tree depth exceeds threshold",
			"node", n.String(), "depth", depth, "threshold", debugMaxTreeDepth)
	}
}

// debugMaxChildCount is the child count beyond which debug mode warns.
const debugMaxChildCount = 1000

func debugCheckChildCount(n *Node) {
	if len(n.children) > debugMaxChildCount {
		Logger().Warn("lantern: child count exceeds threshold",
			"node", n.String(), "children", len(n.children), "threshold", debugMaxChildCount)
	}
}
