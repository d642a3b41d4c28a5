package envy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/Masterminds/semver/v3"
	"github.com/h2non/filetype"
)

// AssetVersion is the only asset format version this package reads and
// writes.
var AssetVersion = semver.MustParse("0.1.0")

var (
	// ErrVersionMismatch is returned when an asset header is not AssetVersion.
	ErrVersionMismatch = errors.New("asset version mismatch")

	// ErrUnencodable is returned when a template holds state the asset format
	// cannot represent: sublayouts, masks, UV transforms, tiling, visibility,
	// text outlines, easing other than linear and any channel but angle.
	ErrUnencodable = errors.New("template not representable in asset format")

	// ErrMissingResource is returned when an asset provider lacks the bytes of
	// a referenced texture or font.
	ErrMissingResource = errors.New("missing resource")

	// ErrInvalidResource is returned by Asset.Validate for bytes of the wrong
	// file type.
	ErrInvalidResource = errors.New("invalid resource bytes")
)

// NamedResource is an image or font embedded in an asset. Images are PNG;
// fonts are TTF or OTF.
type NamedResource struct {
	Name  string
	Bytes []byte
}

// Asset is the decoded form of an .envy file: the resources a layout uses,
// its root nodes and its animations.
type Asset struct {
	Images     []NamedResource
	Fonts      []NamedResource
	RootNodes  []NodeTemplate
	Animations map[string]Animation
}

// AssetProvider supplies resource bytes when building an asset.
type AssetProvider interface {
	FetchImageBytes(name string) ([]byte, bool)
	FetchFontBytes(name string) ([]byte, bool)
}

// AssetLoader receives the resources of a decoded asset.
type AssetLoader interface {
	LoadImageBytes(name string, b []byte) error
	LoadFontBytes(name string, b []byte) error
}

// AssetFromTemplate collects the root nodes and animations of tmpl and the
// bytes of every texture and font it references, in tree order.
func AssetFromTemplate(tmpl *LayoutTemplate, provider AssetProvider) (*Asset, error) {
	a := &Asset{
		RootNodes:  tmpl.Clone().RootNodes,
		Animations: make(map[string]Animation, len(tmpl.Animations)),
	}
	for _, na := range tmpl.Animations {
		a.Animations[na.Name] = cloneAnimation(&na.Animation)
	}

	seenImages := make(map[string]bool)
	seenFonts := make(map[string]bool)
	var err error
	tmpl.WalkTree(func(p string, n *NodeTemplate) {
		if err != nil {
			return
		}
		switch n.Impl.Kind {
		case NodeImage:
			name := n.Impl.Image.TextureName
			if name == "" || seenImages[name] {
				return
			}
			seenImages[name] = true
			b, ok := provider.FetchImageBytes(name)
			if !ok {
				err = fmt.Errorf("envy: image %q of %s: %w", name, p, ErrMissingResource)
				return
			}
			a.Images = append(a.Images, NamedResource{Name: name, Bytes: b})
		case NodeText:
			name := n.Impl.Text.FontName
			if seenFonts[name] {
				return
			}
			seenFonts[name] = true
			b, ok := provider.FetchFontBytes(name)
			if !ok {
				err = fmt.Errorf("envy: font %q of %s: %w", name, p, ErrMissingResource)
				return
			}
			a.Fonts = append(a.Fonts, NamedResource{Name: name, Bytes: b})
		}
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Template returns a layout template of the asset's nodes and animations.
// Animations are ordered by name.
func (a *Asset) Template() LayoutTemplate {
	t := NewLayoutTemplate()
	t.RootNodes = a.RootNodes
	for _, name := range slices.Sorted(maps.Keys(a.Animations)) {
		t.Animations = append(t.Animations, NamedAnimation{Name: name, Animation: a.Animations[name]})
	}
	return t
}

// Validate checks that image bytes are PNG and font bytes are TTF or OTF.
func (a *Asset) Validate() error {
	for _, img := range a.Images {
		if !filetype.Is(img.Bytes, "png") {
			return fmt.Errorf("envy: image %q: %w: not a PNG", img.Name, ErrInvalidResource)
		}
	}
	for _, f := range a.Fonts {
		if !filetype.Is(f.Bytes, "ttf") && !filetype.Is(f.Bytes, "otf") {
			return fmt.Errorf("envy: font %q: %w: not a TTF or OTF font", f.Name, ErrInvalidResource)
		}
	}
	return nil
}

// LoadInto hands every embedded resource to l.
func (a *Asset) LoadInto(l AssetLoader) error {
	for _, img := range a.Images {
		if err := l.LoadImageBytes(img.Name, img.Bytes); err != nil {
			return fmt.Errorf("envy: load image %q: %w", img.Name, err)
		}
	}
	for _, f := range a.Fonts {
		if err := l.LoadFontBytes(f.Name, f.Bytes); err != nil {
			return fmt.Errorf("envy: load font %q: %w", f.Name, err)
		}
	}
	return nil
}

// LoadLayoutRoot decodes an asset from r, loads its resources into l and
// returns a root built from its template.
func LoadLayoutRoot(r io.Reader, l AssetLoader) (*LayoutRoot, error) {
	a, err := DecodeAsset(r)
	if err != nil {
		return nil, err
	}
	if err := a.LoadInto(l); err != nil {
		return nil, err
	}
	return NewLayoutRoot(a.Template(), nil)
}

// --- Encoding ---

// EncodeAsset writes the version header followed by the asset. Animations are
// written in name order, so equal assets encode to equal bytes.
func EncodeAsset(w io.Writer, a *Asset) error {
	enc := &bincodeWriter{}
	enc.u8(uint8(AssetVersion.Major()))
	enc.u8(uint8(AssetVersion.Minor()))
	enc.varint(AssetVersion.Patch())

	writeResources(enc, a.Images)
	writeResources(enc, a.Fonts)

	enc.varint(uint64(len(a.RootNodes)))
	for i := range a.RootNodes {
		if err := writeNode(enc, &a.RootNodes[i], a.RootNodes[i].Name); err != nil {
			return err
		}
	}

	names := slices.Sorted(maps.Keys(a.Animations))
	enc.varint(uint64(len(names)))
	for _, name := range names {
		enc.str(name)
		anim := a.Animations[name]
		if err := writeAnimation(enc, name, &anim); err != nil {
			return err
		}
	}

	if _, err := w.Write(enc.buf); err != nil {
		return fmt.Errorf("envy: write asset: %w", err)
	}
	return nil
}

// EncodeAssetBytes is EncodeAsset into a byte slice.
func EncodeAssetBytes(a *Asset) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeAsset(&buf, a); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeResources(enc *bincodeWriter, res []NamedResource) {
	enc.varint(uint64(len(res)))
	for _, r := range res {
		enc.str(r.Name)
		enc.bytes(r.Bytes)
	}
}

func unencodable(path, format string, args ...any) error {
	return fmt.Errorf("envy: node %s: %w: %s", path, ErrUnencodable, fmt.Sprintf(format, args...))
}

// Node implementation variants in the asset format.
const (
	assetImplEmpty = iota
	assetImplImage
	assetImplText
	assetImplCount
)

func writeNode(enc *bincodeWriter, n *NodeTemplate, path string) error {
	if n.Visibility != VisibilityInherited {
		return unencodable(path, "visibility")
	}

	enc.str(n.Name)
	t := &n.Transform
	enc.f32(t.Angle)
	enc.vec2(t.Position)
	enc.vec2(t.Size)
	enc.vec2(t.Scale)
	enc.varint(uint64(t.Anchor.Kind))
	if t.Anchor.Kind == AnchorCustom {
		enc.vec2(t.Anchor.Custom)
	}
	enc.buf = append(enc.buf, n.Color[:]...)

	switch n.Impl.Kind {
	case NodeEmpty:
		enc.varint(assetImplEmpty)
	case NodeImage:
		img := &n.Impl.Image
		switch {
		case img.MaskTextureName != "":
			return unencodable(path, "mask texture %q", img.MaskTextureName)
		case img.ScalingX != ScalingStretch || img.ScalingY != ScalingStretch:
			return unencodable(path, "tiled scaling")
		case img.UVOffset != (Vec2{}) || img.UVScale != (Vec2{1, 1}):
			return unencodable(path, "uv transform")
		}
		enc.varint(assetImplImage)
		enc.str(img.TextureName)
	case NodeText:
		txt := &n.Impl.Text
		if txt.OutlineThickness != 0 || txt.OutlineColor != (Color{}) {
			return unencodable(path, "text outline")
		}
		enc.varint(assetImplText)
		enc.f32(txt.FontSize)
		enc.f32(txt.LineHeight)
		enc.str(txt.FontName)
		enc.str(txt.Text)
	case NodeSublayout:
		return unencodable(path, "sublayout %q", n.Impl.Sublayout.SublayoutName)
	}

	enc.varint(uint64(len(n.Children)))
	for i := range n.Children {
		c := &n.Children[i]
		if err := writeNode(enc, c, JoinPath(path, c.Name)); err != nil {
			return err
		}
	}
	return nil
}

func writeAnimation(enc *bincodeWriter, name string, a *Animation) error {
	enc.varint(uint64(len(a.NodeAnimations)))
	for i := range a.NodeAnimations {
		na := &a.NodeAnimations[i]
		if na.Position != nil || na.Size != nil || na.Scale != nil || na.Color != nil ||
			na.UVOffset != nil || na.UVScale != nil {
			return fmt.Errorf("envy: animation %q node %s: %w: only angle channels are stored",
				name, na.NodePath, ErrUnencodable)
		}
		enc.str(na.NodePath)
		enc.option(na.Angle != nil)
		if na.Angle == nil {
			continue
		}
		enc.f32(na.Angle.Start)
		enc.varint(uint64(len(na.Angle.Transforms)))
		for _, tr := range na.Angle.Transforms {
			if tr.FirstStep != StepLinear || slices.ContainsFunc(tr.AdditionalSteps, func(s Step) bool { return s != StepLinear }) {
				return fmt.Errorf("envy: animation %q node %s: %w: non-linear easing",
					name, na.NodePath, ErrUnencodable)
			}
			enc.f32(tr.End)
			enc.f32(float32(tr.Duration))
			enc.varint(uint64(StepLinear))
			enc.varint(uint64(len(tr.AdditionalSteps)))
			for range tr.AdditionalSteps {
				enc.varint(uint64(StepLinear))
			}
		}
	}
	return nil
}

// --- Decoding ---

// DecodeAsset reads a version header and an asset. A header other than
// AssetVersion yields ErrVersionMismatch.
func DecodeAsset(r io.Reader) (*Asset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("envy: read asset: %w", err)
	}
	return DecodeAssetBytes(data)
}

// MustDecodeAsset is like DecodeAsset but panics on error.
func MustDecodeAsset(r io.Reader) *Asset {
	a, err := DecodeAsset(r)
	if err != nil {
		panic(err)
	}
	return a
}

// DecodeAssetBytes decodes an asset held in memory.
func DecodeAssetBytes(data []byte) (*Asset, error) {
	dec := &bincodeReader{data: data}
	major := dec.u8()
	minor := dec.u8()
	patch := dec.varint()
	if dec.err != nil {
		return nil, dec.err
	}
	v := semver.New(uint64(major), uint64(minor), patch, "", "")
	if !v.Equal(AssetVersion) {
		return nil, fmt.Errorf("envy: %w: got %s, want %s", ErrVersionMismatch, v, AssetVersion)
	}

	a := &Asset{Animations: make(map[string]Animation)}
	a.Images = readResources(dec)
	a.Fonts = readResources(dec)

	count := dec.length()
	for i := 0; i < count && dec.err == nil; i++ {
		a.RootNodes = append(a.RootNodes, readNode(dec))
	}

	count = dec.length()
	for i := 0; i < count && dec.err == nil; i++ {
		name := dec.str()
		anim := readAnimation(dec)
		if name == "" {
			continue
		}
		a.Animations[name] = anim
	}

	if dec.err != nil {
		return nil, dec.err
	}
	if dec.off != len(data) {
		return nil, fmt.Errorf("envy: %w: %d trailing bytes", ErrMalformedAsset, len(data)-dec.off)
	}
	if err := checkNodeNames(a.RootNodes, ""); err != nil {
		return nil, fmt.Errorf("envy: %w: %w", ErrMalformedAsset, err)
	}
	return a, nil
}

func readResources(dec *bincodeReader) []NamedResource {
	count := dec.length()
	var res []NamedResource
	for i := 0; i < count && dec.err == nil; i++ {
		name := dec.str()
		res = append(res, NamedResource{Name: name, Bytes: dec.bytes()})
	}
	return res
}

func readNode(dec *bincodeReader) NodeTemplate {
	n := NodeTemplate{Name: dec.str()}
	t := &n.Transform
	t.Angle = dec.f32()
	t.Position = dec.vec2()
	t.Size = dec.vec2()
	t.Scale = dec.vec2()
	t.Anchor.Kind = AnchorKind(dec.variant("anchor", uint64(AnchorCustom)+1))
	if t.Anchor.Kind == AnchorCustom {
		t.Anchor.Custom = dec.vec2()
	}
	copy(n.Color[:], dec.take(4))

	switch dec.variant("node implementation", assetImplCount) {
	case assetImplEmpty:
		n.Impl = EmptyImpl()
	case assetImplImage:
		n.Impl = ImageImpl(dec.str())
	case assetImplText:
		size := dec.f32()
		lineHeight := dec.f32()
		font := dec.str()
		n.Impl = TextImpl(font, dec.str(), size, lineHeight)
	}

	count := dec.length()
	for i := 0; i < count && dec.err == nil; i++ {
		n.Children = append(n.Children, readNode(dec))
	}
	return n
}

func readAnimation(dec *bincodeReader) Animation {
	var a Animation
	count := dec.length()
	for i := 0; i < count && dec.err == nil; i++ {
		na := NodeAnimation{NodePath: dec.str()}
		if dec.option() {
			ch := NewChannel(dec.f32())
			transforms := dec.length()
			for j := 0; j < transforms && dec.err == nil; j++ {
				tr := AnimationTransform[float32]{End: dec.f32()}
				tr.Duration = roundFrames(dec.f32())
				tr.FirstStep = Step(dec.variant("step", 1))
				steps := dec.length()
				for k := 0; k < steps && dec.err == nil; k++ {
					tr.AdditionalSteps = append(tr.AdditionalSteps, Step(dec.variant("step", 1)))
				}
				ch.Transforms = append(ch.Transforms, tr)
			}
			na.Angle = ch
			a.TotalDuration = max(a.TotalDuration, ch.TotalDuration())
		}
		a.NodeAnimations = append(a.NodeAnimations, na)
	}
	return a
}

// roundFrames rounds a stored f32 duration to whole frames. Negative and NaN
// durations become 0.
func roundFrames(d float32) uint32 {
	if !(d > 0) {
		return 0
	}
	return uint32(d + 0.5)
}
