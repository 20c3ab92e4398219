package badge

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/driftwood-labs/beacon/internal/testutil/testlog"
)

func writeBaseIcon(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: 0x1E, G: 0x3A, B: 0x8A, A: 0xFF})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode base icon: %v", err)
	}
	path := filepath.Join(t.TempDir(), "favicon.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("write base icon: %v", err)
	}
	return path
}

func TestRenderZeroReturnsBaseIcon(t *testing.T) {
	testlog.Start(t)
	path := writeBaseIcon(t)
	base, _ := os.ReadFile(path)
	r := NewRenderer(path, zerolog.Nop())

	out, err := r.Render(0)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.Equal(out, base) {
		t.Fatalf("count 0 must return the unmodified base icon")
	}
}

func TestRenderBadgeChangesImage(t *testing.T) {
	testlog.Start(t)
	path := writeBaseIcon(t)
	base, _ := os.ReadFile(path)
	r := NewRenderer(path, zerolog.Nop())

	out, err := r.Render(5)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if bytes.Equal(out, base) {
		t.Fatalf("badged icon must differ from base")
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("badged output must stay valid png: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 32, 32) {
		t.Fatalf("badge must not resize the icon: %v", img.Bounds())
	}
}

func TestRenderCaches(t *testing.T) {
	testlog.Start(t)
	r := NewRenderer(writeBaseIcon(t), zerolog.Nop())
	a, err := r.Render(3)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	b, err := r.Render(3)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if &a[0] != &b[0] {
		t.Fatalf("repeated renders of one count must reuse the cached bytes")
	}
}

func TestDisplayLabelClamp(t *testing.T) {
	testlog.Start(t)
	cases := map[int]string{1: "1", 42: "42", 99: "99", 100: "99+", 5000: "99+"}
	for count, want := range cases {
		if got := displayLabel(count); got != want {
			t.Fatalf("displayLabel(%d)=%q want %q", count, got, want)
		}
	}
}

func TestRenderUndecodableBaseFallsBack(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "favicon.png")
	raw := []byte("not a png at all")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	r := NewRenderer(path, zerolog.Nop())
	out, err := r.Render(7)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.Equal(out, raw) {
		t.Fatalf("undecodable base must fall back to the raw bytes")
	}
}

func TestRenderMissingBaseIcon(t *testing.T) {
	testlog.Start(t)
	r := NewRenderer(filepath.Join(t.TempDir(), "absent.png"), zerolog.Nop())
	if _, err := r.Render(1); !errors.Is(err, ErrNoBaseIcon) {
		t.Fatalf("expected ErrNoBaseIcon, got %v", err)
	}
}
