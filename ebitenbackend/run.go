package ebitenbackend

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"

	"github.com/phanxgames/envy"
)

// RunConfig configures Run.
type RunConfig struct {
	Title         string
	Width, Height int         // window size; the canvas is scaled to fit
	Background    color.Color // nil leaves the screen cleared to black
	ShowFPS       bool

	// ScreenshotDir receives PNGs queued with Host.Screenshot. Empty selects
	// "screenshots".
	ScreenshotDir string

	// OnUpdate runs at the start of every tick, before the pipeline. A
	// non-nil error stops the game; ebiten.Termination stops it cleanly.
	OnUpdate func(h *Host) error
}

// Host is an ebiten.Game that drives one LayoutRoot through the frame
// pipeline: update animations, update, propagate, prepare, upload, render.
type Host struct {
	root    *envy.LayoutRoot
	backend *Backend
	cfg     RunConfig

	fps       *ebiten.Image
	fpsTicker float64

	screenshots []string
	frame       uint64
}

// NewHost sets up root on b and returns a host for it.
func NewHost(root *envy.LayoutRoot, b *Backend, cfg RunConfig) *Host {
	if cfg.ScreenshotDir == "" {
		cfg.ScreenshotDir = "screenshots"
	}
	root.Setup(b)
	return &Host{root: root, backend: b, cfg: cfg}
}

// Run opens a window and runs root until the window closes.
func Run(root *envy.LayoutRoot, b *Backend, cfg RunConfig) error {
	ebiten.SetWindowTitle(cfg.Title)
	if cfg.Width > 0 && cfg.Height > 0 {
		ebiten.SetWindowSize(cfg.Width, cfg.Height)
	}
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	h := NewHost(root, b, cfg)
	defer h.root.Release(h.backend)
	if err := ebiten.RunGame(h); err != nil && !errors.Is(err, ebiten.Termination) {
		return fmt.Errorf("envy: run: %w", err)
	}
	return nil
}

// Root returns the layout being driven.
func (h *Host) Root() *envy.LayoutRoot { return h.root }

// Backend returns the backend the layout is set up on.
func (h *Host) Backend() *Backend { return h.backend }

// SetRoot releases the current layout and sets up root in its place.
func (h *Host) SetRoot(root *envy.LayoutRoot) {
	h.root.Release(h.backend)
	h.root = root
	h.root.Setup(h.backend)
}

// Screenshot queues a capture of the next drawn frame. The file is named
// after label and the frame number; see screenshotPath.
func (h *Host) Screenshot(label string) {
	h.screenshots = append(h.screenshots, label)
}

// Update implements ebiten.Game.
func (h *Host) Update() error {
	if h.cfg.OnUpdate != nil {
		if err := h.cfg.OnUpdate(h); err != nil {
			return err
		}
	}
	h.root.UpdateAnimations()
	h.root.Update()
	h.root.Propagate()
	h.root.Prepare(h.backend)
	h.backend.Update()
	if h.cfg.ShowFPS {
		h.updateFPS()
	}
	return nil
}

// Draw implements ebiten.Game.
func (h *Host) Draw(screen *ebiten.Image) {
	if h.cfg.Background != nil {
		screen.Fill(h.cfg.Background)
	}
	h.frame++
	h.backend.ResetStats()
	envy.RenderRoot(h.root, h.backend, screen)
	h.flushScreenshots(screen)
	if h.fps != nil {
		screen.DrawImage(h.fps, nil)
	}
}

// Layout implements ebiten.Game. The screen is always the design canvas.
func (h *Host) Layout(_, _ int) (int, int) {
	return envy.CanvasWidth, envy.CanvasHeight
}

// updateFPS redraws the counter roughly twice a second.
func (h *Host) updateFPS() {
	if h.fps == nil {
		h.fps = ebiten.NewImage(120, 48)
	}
	h.fpsTicker += 1 / float64(ebiten.TPS())
	if h.fpsTicker < 0.5 {
		return
	}
	h.fpsTicker = 0
	s := h.backend.Stats()
	h.fps.Clear()
	h.fps.Fill(color.RGBA{A: 128})
	ebitenutil.DebugPrint(h.fps, fmt.Sprintf("FPS: %.1f\nTPS: %.1f\nDraws: %d",
		ebiten.ActualFPS(), ebiten.ActualTPS(), s.TextureDraws+s.GlyphDraws))
}

// flushScreenshots writes the frame once per queued label.
func (h *Host) flushScreenshots(screen *ebiten.Image) {
	if len(h.screenshots) == 0 {
		return
	}
	defer func() { h.screenshots = h.screenshots[:0] }()

	if err := os.MkdirAll(h.cfg.ScreenshotDir, 0o755); err != nil {
		envy.Logger().Warn("envy: screenshot", "dir", h.cfg.ScreenshotDir, "err", err)
		return
	}
	data, err := encodePNG(unpremultiply(screen))
	if err != nil {
		envy.Logger().Warn("envy: screenshot", "err", err)
		return
	}
	for _, label := range h.screenshots {
		path := h.screenshotPath(label)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			envy.Logger().Warn("envy: screenshot", "path", path, "err", err)
		}
	}
}

// screenshotPath names a capture <label>-<frame>.png in the screenshot
// directory. An empty label is replaced by the playing animations, or
// "layout" when none play. Labels are read as node paths, so "menu/quit"
// becomes "menu-quit".
func (h *Host) screenshotPath(label string) string {
	if strings.TrimSpace(label) == "" {
		label = strings.Join(h.root.Tree().PlayingAnimations(), "+")
	}
	parts := envy.PathComponents(label)
	for i, p := range parts {
		parts[i] = strings.Map(fileRune, strings.TrimSpace(p))
	}
	name := strings.Join(slices.DeleteFunc(parts, func(p string) bool { return p == "" }), "-")
	if name == "" {
		name = "layout"
	}
	return filepath.Join(h.cfg.ScreenshotDir, fmt.Sprintf("%s-%06d.png", name, h.frame))
}

func fileRune(r rune) rune {
	if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("-_.+", r) {
		return r
	}
	return '_'
}

// unpremultiply reads screen into a straight-alpha image.
func unpremultiply(screen *ebiten.Image) *image.NRGBA {
	b := screen.Bounds()
	img := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	screen.ReadPixels(img.Pix)
	for i := 0; i < len(img.Pix); i += 4 {
		a := int(img.Pix[i+3])
		if a == 0 || a == 255 {
			continue
		}
		for c := range 3 {
			img.Pix[i+c] = uint8(min(int(img.Pix[i+c])*255/a, 255))
		}
	}
	return img
}
