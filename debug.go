package envy

import (
	"fmt"
	"io"
	"os"
	"time"
)

// debugStats holds per-frame timing of the pipeline phases.
// Only populated when LayoutRoot.debug is true.
type debugStats struct {
	animationTime time.Duration
	updateTime    time.Duration
	propagateTime time.Duration
	prepareTime   time.Duration
	renderTime    time.Duration
}

// debugOutput is where debug lines go. Tests swap it.
var debugOutput io.Writer = os.Stderr

// timed runs fn and, in debug mode, stores its wall time in d.
func (r *LayoutRoot) timed(d *time.Duration, fn func()) {
	if !r.debug {
		fn()
		return
	}
	start := time.Now()
	fn()
	*d = time.Since(start)
}

// debugLog prints the phase timings and tree size of the last frame.
func (r *LayoutRoot) debugLog() {
	if !r.debug {
		return
	}
	s := r.stats
	total := s.animationTime + s.updateTime + s.propagateTime + s.prepareTime + s.renderTime
	_, _ = fmt.Fprintf(debugOutput,
		"[envy] animations: %v | update: %v | propagate: %v | prepare: %v | render: %v | total: %v\n",
		s.animationTime, s.updateTime, s.propagateTime, s.prepareTime, s.renderTime, total)
	nodes, sublayouts, depth := treeStats(r.tree, 0)
	_, _ = fmt.Fprintf(debugOutput, "[envy] nodes: %d | sublayouts: %d | sublayout depth: %d\n",
		nodes, sublayouts, depth)
}

// treeStats counts nodes and sublayout instances, entering sublayout trees,
// and reports the deepest sublayout nesting.
func treeStats(t *LayoutTree, level int) (nodes, sublayouts, depth int) {
	depth = level
	t.Walk(func(n *NodeItem) {
		nodes++
		if n.sublayout == nil {
			return
		}
		sublayouts++
		cn, cs, cd := treeStats(n.sublayout.tree, level+1)
		nodes += cn
		sublayouts += cs
		depth = max(depth, cd)
	})
	return nodes, sublayouts, depth
}

// debugMaxChildCount is the group size past which debug mode warns.
const debugMaxChildCount = 1000

// debugCheckChildCount warns if any group of t has more than
// debugMaxChildCount nodes.
func debugCheckChildCount(t *LayoutTree) {
	if len(t.roots) > debugMaxChildCount {
		_, _ = fmt.Fprintf(debugOutput, "[envy] warning: %d root nodes (threshold %d)\n",
			len(t.roots), debugMaxChildCount)
	}
	t.Walk(func(n *NodeItem) {
		if len(n.children) > debugMaxChildCount {
			_, _ = fmt.Fprintf(debugOutput, "[envy] warning: node %q has %d children (threshold %d)\n",
				n.name, len(n.children), debugMaxChildCount)
		}
	})
}
