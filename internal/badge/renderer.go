// Package badge composes a numeric unread badge onto the base icon.
package badge

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var ErrNoBaseIcon = errors.New("badge: base icon unavailable")

// maxDisplayCount clamps the rendered text to "99+".
const maxDisplayCount = 99

var (
	badgeFill   = color.RGBA{R: 0xDC, G: 0x26, B: 0x26, A: 0xFF}
	badgeBorder = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	badgeText   = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
)

// Renderer draws count badges onto a base icon loaded once per
// process. Rendering is synchronous; the cached base image and the
// last rendered output are safe to share.
type Renderer struct {
	path string
	log  zerolog.Logger

	loadOnce  sync.Once
	baseBytes []byte
	base      image.Image
	loadErr   error

	mu        sync.Mutex
	lastCount int
	lastOut   []byte
}

func NewRenderer(path string, logger zerolog.Logger) *Renderer {
	return &Renderer{path: path, log: logger.With().Str("icon", path).Logger()}
}

// Render returns the encoded icon for the given unread count. A count
// of zero or less returns the base icon unchanged. If the base icon
// cannot be decoded the raw base bytes are returned as a fallback.
func (r *Renderer) Render(count int) ([]byte, error) {
	r.load()
	if r.baseBytes == nil {
		return nil, fmt.Errorf("%w: %v", ErrNoBaseIcon, r.loadErr)
	}
	if count <= 0 || r.base == nil {
		return r.baseBytes, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastOut != nil && r.lastCount == count {
		return r.lastOut, nil
	}

	out, err := r.compose(count)
	if err != nil {
		return r.baseBytes, nil
	}
	r.lastCount = count
	r.lastOut = out
	return out, nil
}

func (r *Renderer) load() {
	r.loadOnce.Do(func() {
		data, err := os.ReadFile(r.path)
		if err != nil {
			r.loadErr = err
			r.log.Warn().Err(err).Msg("base icon read failed")
			return
		}
		r.baseBytes = data
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			// Fall back to serving the raw bytes unbadged.
			r.log.Warn().Err(err).Msg("base icon decode failed")
			return
		}
		r.base = img
	})
}

func (r *Renderer) compose(count int) ([]byte, error) {
	bounds := r.base.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, r.base, bounds.Min, draw.Src)

	label := displayLabel(count)

	// Fixed corner position: bottom-right, sized for up to three glyphs.
	radius := bounds.Dx() / 4
	if radius < 6 {
		radius = 6
	}
	cx := bounds.Max.X - radius - 1
	cy := bounds.Max.Y - radius - 1
	fillDisc(canvas, cx, cy, radius, badgeBorder)
	fillDisc(canvas, cx, cy, radius-1, badgeFill)
	drawCenteredLabel(canvas, cx, cy, label)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func displayLabel(count int) string {
	if count > maxDisplayCount {
		return "99+"
	}
	digits := ""
	for count > 0 {
		digits = string(rune('0'+count%10)) + digits
		count /= 10
	}
	return digits
}

func fillDisc(canvas *image.RGBA, cx, cy, radius int, c color.Color) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				canvas.Set(cx+dx, cy+dy, c)
			}
		}
	}
}

func drawCenteredLabel(canvas *image.RGBA, cx, cy int, label string) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, label).Ceil()
	drawer := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(badgeText),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I(cx - width/2),
			Y: fixed.I(cy + face.Ascent/2 - 1),
		},
	}
	drawer.DrawString(label)
}
