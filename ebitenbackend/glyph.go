package ebitenbackend

import (
	"math"
	"strings"
	"unicode"

	"github.com/go-text/typesetting/di"
	"github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/font/opentype"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/math/fixed"

	"github.com/phanxgames/envy"
)

// --- Glyph cache ---

// glyphKey identifies one tessellated glyph. Sizes are stored as float bits
// so equal floats hash equal.
type glyphKey struct {
	font       uint32
	gid        font.GID
	size       uint32
	lineHeight uint32
	advance    uint32
	outline    uint32
}

// meshRange is a run of vertices and the indices into it, relative to the
// first vertex.
type meshRange struct {
	vertexStart, vertexCount int
	indexStart, indexCount   int
}

func (r meshRange) empty() bool { return r.indexCount == 0 }

type glyphEntry struct {
	fill   meshRange
	stroke meshRange // empty without an outline
}

// glyphCache holds the geometry of every glyph ever laid out. Entries are
// never evicted; a GlyphHandle is the entry index plus one.
type glyphCache struct {
	vertices bufferVec[ebiten.Vertex]
	indices  bufferVec[uint32]
	entries  []glyphEntry
	keys     map[glyphKey]envy.GlyphHandle
}

// lookup returns the handle of key, building its geometry with build on a
// miss.
func (c *glyphCache) lookup(key glyphKey, build func() *vector.Path, thickness float32) envy.GlyphHandle {
	if h, ok := c.keys[key]; ok {
		return h
	}
	if c.keys == nil {
		c.keys = make(map[glyphKey]envy.GlyphHandle)
	}
	path := build()
	var e glyphEntry
	vs, is := path.AppendVerticesAndIndicesForFilling(nil, nil)
	e.fill = c.append(vs, widenIndices(is))
	if thickness > 0 {
		vs, is = path.AppendVerticesAndIndicesForStroke(nil, nil, &vector.StrokeOptions{
			Width:    thickness,
			LineJoin: vector.LineJoinRound,
		})
		e.stroke = c.append(vs, widenIndices(is))
	}
	c.entries = append(c.entries, e)
	h := envy.GlyphHandle(len(c.entries))
	c.keys[key] = h
	return h
}

func (c *glyphCache) append(vs []ebiten.Vertex, is []uint32) meshRange {
	return meshRange{
		vertexStart: c.vertices.push(vs...),
		vertexCount: len(vs),
		indexStart:  c.indices.push(is...),
		indexCount:  len(is),
	}
}

// widenIndices converts the uint16 indices produced by vector.Path to the
// uint32 indices the cache stores.
func widenIndices(is []uint16) []uint32 {
	out := make([]uint32, len(is))
	for i, v := range is {
		out[i] = uint32(v)
	}
	return out
}

func (c *glyphCache) entry(h envy.GlyphHandle) (glyphEntry, bool) {
	if !h.Valid() || h.Slot() >= len(c.entries) {
		return glyphEntry{}, false
	}
	return c.entries[h.Slot()], true
}

// mesh returns the uploaded vertices and indices of r.
func (c *glyphCache) mesh(r meshRange) ([]ebiten.Vertex, []uint32) {
	vs := c.vertices.view(r.vertexStart, r.vertexStart+r.vertexCount)
	is := c.indices.view(r.indexStart, r.indexStart+r.indexCount)
	if vs == nil || is == nil {
		return nil, nil
	}
	return vs, is
}

// GlyphCount returns the number of distinct glyphs tessellated so far.
func (b *Backend) GlyphCount() int { return len(b.glyphs.entries) }

// glyphPath builds the outline of gid in glyph-local space. The glyph box is
// w x h with its origin at the center; the pen sits at the left edge on a
// baseline h/2 below the center.
func glyphPath(face *font.Face, gid font.GID, size, w, h float32) *vector.Path {
	var path vector.Path
	outline, ok := face.GlyphData(gid).(font.GlyphOutline)
	if !ok {
		return &path
	}
	scale := size / float32(face.Upem())
	pt := func(p opentype.SegmentPoint) (float32, float32) {
		return p.X*scale - w/2, -p.Y*scale - h/2
	}
	open := false
	for _, s := range outline.Segments {
		switch s.Op {
		case opentype.SegmentOpMoveTo:
			if open {
				path.Close()
			}
			x, y := pt(s.Args[0])
			path.MoveTo(x, y)
			open = true
		case opentype.SegmentOpLineTo:
			x, y := pt(s.Args[0])
			path.LineTo(x, y)
		case opentype.SegmentOpQuadTo:
			cx, cy := pt(s.Args[0])
			x, y := pt(s.Args[1])
			path.QuadTo(cx, cy, x, y)
		case opentype.SegmentOpCubeTo:
			c1x, c1y := pt(s.Args[0])
			c2x, c2y := pt(s.Args[1])
			x, y := pt(s.Args[2])
			path.CubicTo(c1x, c1y, c2x, c2y, x, y)
		}
	}
	if open {
		path.Close()
	}
	return &path
}

// --- Text layout ---

type shapedGlyph struct {
	gid     font.GID
	advance float32
	offset  envy.Vec2 // shaper offset, y up
	space   bool
}

// LayoutText shapes args.Text with the font of args.Font and wraps it
// greedily at word boundaries to args.BufferSize.X. Lines are
// args.LineHeight apart, each baseline centered in its line. Every visible
// glyph gets its own uniform, plus an outline uniform when the outline
// thickness is positive.
func (b *Backend) LayoutText(args envy.TextLayoutArgs) []envy.PreparedGlyph {
	f := b.font(args.Font)
	if f == nil {
		envy.Logger().Warn("envy: layout with unknown font", "handle", uint32(args.Font))
		return nil
	}
	face := f.face

	var out []envy.PreparedGlyph
	line := 0
	for _, para := range strings.Split(args.Text, "\n") {
		glyphs, ascent, descent := b.shape(face, para, args.FontSize)
		for _, row := range wrapGlyphs(glyphs, args.BufferSize.X) {
			top := float32(line) * args.LineHeight
			baseline := top + (args.LineHeight+ascent-descent)/2
			var pen float32
			for _, g := range row {
				if !g.space {
					out = append(out, b.prepareGlyph(f, face, g, args, envy.Vec2{
						X: pen + g.offset.X,
						Y: baseline - g.offset.Y,
					}))
				}
				pen += g.advance
			}
			line++
		}
	}
	return out
}

func (b *Backend) prepareGlyph(f *loadedFont, face *font.Face, g shapedGlyph, args envy.TextLayoutArgs, offset envy.Vec2) envy.PreparedGlyph {
	size := envy.Vec2{X: g.advance, Y: args.LineHeight}
	key := glyphKey{
		font:       f.id,
		gid:        g.gid,
		size:       math.Float32bits(args.FontSize),
		lineHeight: math.Float32bits(args.LineHeight),
		advance:    math.Float32bits(g.advance),
		outline:    math.Float32bits(args.OutlineThickness),
	}
	h := b.glyphs.lookup(key, func() *vector.Path {
		return glyphPath(face, g.gid, args.FontSize, size.X, size.Y)
	}, args.OutlineThickness)

	pg := envy.PreparedGlyph{Glyph: h, Offset: offset, Size: size}
	pg.Uniform, _ = b.RequestNewUniform()
	if args.OutlineThickness > 0 {
		pg.Outline, _ = b.RequestNewUniform()
	}
	return pg
}

// shape runs the shaper over one paragraph and returns its glyphs and the
// line ascent and descent in pixels, both positive.
func (b *Backend) shape(face *font.Face, text string, size float32) ([]shapedGlyph, float32, float32) {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil, 0, 0
	}
	out := b.shaper.Shape(shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: di.DirectionLTR,
		Face:      face,
		Size:      fixed.Int26_6(size * 64),
		Script:    detectScript(runes),
		Language:  language.NewLanguage("en"),
	})
	glyphs := make([]shapedGlyph, len(out.Glyphs))
	for i, g := range out.Glyphs {
		glyphs[i] = shapedGlyph{
			gid:     g.GlyphID,
			advance: fixedToFloat(g.Advance),
			offset:  envy.Vec2{X: fixedToFloat(g.XOffset), Y: fixedToFloat(g.YOffset)},
			space:   g.ClusterIndex < len(runes) && unicode.IsSpace(runes[g.ClusterIndex]),
		}
	}
	return glyphs, fixedToFloat(out.LineBounds.Ascent), -fixedToFloat(out.LineBounds.Descent)
}

// wrapGlyphs breaks glyphs into rows no wider than width, breaking after the
// last space that fits. A word wider than the row is kept whole. An empty
// paragraph yields one empty row.
func wrapGlyphs(glyphs []shapedGlyph, width float32) [][]shapedGlyph {
	var rows [][]shapedGlyph
	start, lastSpace := 0, -1
	var rowWidth float32
	for i, g := range glyphs {
		if !g.space && rowWidth+g.advance > width && lastSpace >= start {
			rows = append(rows, glyphs[start:lastSpace+1])
			start = lastSpace + 1
			rowWidth = 0
			for _, w := range glyphs[start:i] {
				rowWidth += w.advance
			}
			lastSpace = -1
		}
		if g.space {
			lastSpace = i
		}
		rowWidth += g.advance
	}
	return append(rows, glyphs[start:])
}

func detectScript(runes []rune) language.Script {
	for _, r := range runes {
		if !unicode.IsSpace(r) {
			return language.LookupScript(r)
		}
	}
	return language.Latin
}

func fixedToFloat(v fixed.Int26_6) float32 {
	return float32(v) / 64
}
