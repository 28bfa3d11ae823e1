// Package badge draws guest badges and plain QR codes as PNG images.
package badge

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"

	"github.com/skip2/go-qrcode"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/mmynk/guestpass/internal/models"
)

// Badge geometry.
const (
	Width  = 400
	Height = 560

	borderRadius = 30
	borderWidth  = 3
	qrSize       = 130
)

var (
	bgColor     = color.RGBA{0x14, 0x29, 0x6a, 0xff}
	borderColor = color.RGBA{0x31, 0x41, 0x7a, 0xff}
	gold        = color.RGBA{0xf8, 0xd7, 0xa4, 0xff}
	white       = color.RGBA{0xff, 0xff, 0xff, 0xff}
	pale        = color.RGBA{0xc6, 0xd7, 0xfa, 0xff}
	yellow      = color.RGBA{0xff, 0xe0, 0xb2, 0xff}
	footerColor = color.RGBA{0xb1, 0xbb, 0xd4, 0xff}
)

// Event is the text printed around the guest details.
type Event struct {
	Title  string
	Lines  []string
	Footer string
}

// Options configures a Renderer.
type Options struct {
	// FontPath and BoldFontPath point at TrueType/OpenType files. When empty
	// or unreadable the embedded Go fonts are used.
	FontPath     string
	BoldFontPath string

	Event  Event
	Logger *slog.Logger
}

// Renderer draws badges. It is safe for concurrent use: parsed fonts are
// shared and faces are created per render.
type Renderer struct {
	regular *opentype.Font
	bold    *opentype.Font
	event   Event
	logger  *slog.Logger
}

// New loads fonts and returns a Renderer. Font problems never fail: they
// fall back to the embedded Go fonts and finally to a fixed bitmap face.
func New(opts Options) *Renderer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		regular: loadFont(opts.FontPath, goregular.TTF, logger),
		bold:    loadFont(opts.BoldFontPath, gobold.TTF, logger),
		event:   opts.Event,
		logger:  logger,
	}
}

func loadFont(path string, fallback []byte, logger *slog.Logger) *opentype.Font {
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			var f *opentype.Font
			if f, err = opentype.Parse(data); err == nil {
				return f
			}
		}
		logger.Warn("Badge font unavailable, using built-in font", "path", path, "error", err)
	}
	f, err := opentype.Parse(fallback)
	if err != nil {
		logger.Warn("Built-in font unavailable, using bitmap font", "error", err)
		return nil
	}
	return f
}

// face returns a face at size points, or the bitmap face if f is unusable.
func face(f *opentype.Font, size float64) font.Face {
	if f == nil {
		return basicfont.Face7x13
	}
	fc, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return basicfont.Face7x13
	}
	return fc
}

// Render draws the badge for g and returns it PNG-encoded.
func (r *Renderer) Render(g *models.Guest) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	fill(img, img.Bounds(), bgColor)
	roundedBorder(img, borderRadius, borderWidth, borderColor)

	title := face(r.bold, 22)
	event := face(r.regular, 15)
	name := face(r.bold, 29)
	info := face(r.regular, 18)
	small := face(r.regular, 14)
	present := face(r.bold, 16)

	cx := Width / 2
	y := 32
	centerText(img, r.event.Title, cx, y, title, gold)
	y += 36
	for _, line := range r.event.Lines {
		centerText(img, line, cx, y, event, pale)
		y += 24
	}

	y += 5
	hline(img, 40, Width-40, y, 2, gold)
	y += 18

	qr, err := qrImage(g.ID, qrSize)
	if err != nil {
		return nil, err
	}
	qx := (Width - qrSize) / 2
	xdraw.NearestNeighbor.Scale(img, image.Rect(qx, y, qx+qrSize, y+qrSize), qr, qr.Bounds(), xdraw.Src, nil)
	y += qrSize + 14

	centerText(img, g.Name, cx, y, name, gold)
	y += 37
	centerText(img, g.Phone, cx, y, info, white)
	y += 22
	centerText(img, "ID: "+g.ID, cx, y, event, pale)
	y += 18
	hline(img, 70, Width-70, y, 1, pale)
	y += 15
	centerText(img, "Present this badge at entry", cx, y, present, yellow)

	centerText(img, r.event.Footer, cx, Height-36, small, footerColor)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode badge: %w", err)
	}
	return buf.Bytes(), nil
}

// QR returns a PNG QR code encoding content.
func QR(content string, size int) ([]byte, error) {
	data, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr code: %w", err)
	}
	return data, nil
}

func qrImage(content string, size int) (image.Image, error) {
	q, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to build qr code: %w", err)
	}
	return q.Image(size), nil
}

// centerText draws s centred horizontally on cx and vertically on cy.
func centerText(dst *image.RGBA, s string, cx, cy int, f font.Face, c color.Color) {
	if s == "" {
		return
	}
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(c), Face: f}
	width := d.MeasureString(s)
	m := f.Metrics()
	baseline := fixed.I(cy) + (m.Ascent-m.Descent)/2
	d.Dot = fixed.Point26_6{X: fixed.I(cx) - width/2, Y: baseline}
	d.DrawString(s)
}

func fill(dst *image.RGBA, r image.Rectangle, c color.RGBA) {
	xdraw.Draw(dst, r, image.NewUniform(c), image.Point{}, xdraw.Src)
}

// hline draws a horizontal line of the given thickness centred on y.
func hline(dst *image.RGBA, x0, x1, y, thickness int, c color.RGBA) {
	top := y - thickness/2
	fill(dst, image.Rect(x0, top, x1+1, top+thickness), c)
}

// roundedBorder paints a ring of width w along the image edge with corner
// radius radius.
func roundedBorder(dst *image.RGBA, radius, w int, c color.RGBA) {
	b := dst.Bounds()
	outer := b
	inner := b.Inset(w)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if inRounded(x, y, outer, radius) && !inRounded(x, y, inner, radius-w) {
				dst.SetRGBA(x, y, c)
			}
		}
	}
}

// inRounded reports whether pixel (x, y) lies inside r with rounded corners.
func inRounded(x, y int, r image.Rectangle, radius int) bool {
	if x < r.Min.X || x >= r.Max.X || y < r.Min.Y || y >= r.Max.Y {
		return false
	}
	if radius <= 0 {
		return true
	}
	// Distance to the nearest corner centre, if the pixel is in a corner box.
	cx, cy := x, y
	switch {
	case x < r.Min.X+radius:
		cx = r.Min.X + radius
	case x >= r.Max.X-radius:
		cx = r.Max.X - radius - 1
	}
	switch {
	case y < r.Min.Y+radius:
		cy = r.Min.Y + radius
	case y >= r.Max.Y-radius:
		cy = r.Max.Y - radius - 1
	}
	dx, dy := x-cx, y-cy
	return dx*dx+dy*dy <= radius*radius
}
