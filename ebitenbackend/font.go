package ebitenbackend

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/go-text/typesetting/font"
	"github.com/h2non/filetype"

	"github.com/phanxgames/envy"
)

var errEmptyName = errors.New("empty resource name")

// loadedFont is a parsed font together with the bytes it came from. id is
// unique for the lifetime of the backend so glyph cache keys never alias
// between a font and its replacement.
type loadedFont struct {
	id   uint32
	face *font.Face
	data []byte
}

type fontSlot struct {
	name string
	font *loadedFont
}

type fontStore struct {
	named   map[string]*loadedFont
	handles slotTable[fontSlot]
	nextID  uint32
}

func (s *fontStore) init() {
	s.named = make(map[string]*loadedFont)
}

// parseFont checks that data is a TrueType or OpenType font and parses it.
func parseFont(data []byte) (*font.Face, error) {
	if !filetype.Is(data, "ttf") && !filetype.Is(data, "otf") {
		return nil, envy.ErrInvalidResource
	}
	face, err := font.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return face, nil
}

// --- Handles ---

// RequestFontByName reserves a handle for the named font.
func (b *Backend) RequestFontByName(name string) (envy.FontHandle, bool) {
	f, ok := b.fonts.named[name]
	if !ok {
		return 0, false
	}
	return envy.FontHandle(b.fonts.handles.insert(fontSlot{name: name, font: f})), true
}

// ReleaseFont frees h.
func (b *Backend) ReleaseFont(h envy.FontHandle) {
	if _, ok := b.fonts.handles.remove(uint32(h)); !ok {
		envy.Logger().Warn("envy: release of unknown font", "handle", uint32(h))
	}
}

func (b *Backend) font(h envy.FontHandle) *loadedFont {
	slot := b.fonts.handles.get(uint32(h))
	if slot == nil {
		return nil
	}
	return slot.font
}

// --- Resource management ---

// AddFont parses TTF or OTF bytes and registers the font under name,
// replacing any font of that name. Live handles keep the font they were
// given.
func (b *Backend) AddFont(name string, data []byte) error {
	if name == "" {
		return fmt.Errorf("envy: add font: %w", errEmptyName)
	}
	face, err := parseFont(data)
	if err != nil {
		return fmt.Errorf("envy: add font %q: %w", name, err)
	}
	b.fonts.nextID++
	b.fonts.named[name] = &loadedFont{id: b.fonts.nextID, face: face, data: data}
	return nil
}

// LoadFontsFromPaths adds each font file under its base name without the
// extension.
func (b *Backend) LoadFontsFromPaths(paths ...string) error {
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("envy: load font: %w", err)
		}
		if err := b.AddFont(resourceName(p), data); err != nil {
			return err
		}
	}
	return nil
}

// RenameFont moves a font to a new name. It reports false when oldName is
// missing or newName is taken.
func (b *Backend) RenameFont(oldName, newName string) bool {
	f, ok := b.fonts.named[oldName]
	if !ok || newName == "" {
		return false
	}
	if _, taken := b.fonts.named[newName]; taken {
		return false
	}
	delete(b.fonts.named, oldName)
	b.fonts.named[newName] = f
	return true
}

// RemoveFont unregisters name. Live handles and cached glyphs stay valid.
func (b *Backend) RemoveFont(name string) {
	delete(b.fonts.named, name)
}

// FontNames returns the registered font names, sorted.
func (b *Backend) FontNames() []string {
	names := make([]string, 0, len(b.fonts.named))
	for name := range b.fonts.named {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
