// Package card renders a completed profile as a downloadable PNG ID card.
package card

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/tjfontaine/idcard-assistant/internal/photo"
	"github.com/tjfontaine/idcard-assistant/internal/wizard"
)

const (
	Width  = 360
	Height = 520

	headerHeight = 56
	footerHeight = 64
	padding      = 16
	photoRadius  = 64
	borderWidth  = 4
	rowSpacing   = 52
)

// ErrIncomplete is returned for a profile missing its name, email or age.
var ErrIncomplete = errors.New("profile is incomplete")

var (
	primary     = color.RGBA{R: 79, G: 70, B: 229, A: 255}
	gradientTop = color.RGBA{R: 238, G: 242, B: 255, A: 255}
	gradientEnd = color.RGBA{R: 250, G: 245, B: 255, A: 255}
	footerFill  = color.RGBA{R: 243, G: 244, B: 246, A: 255}
	placeholder = color.RGBA{R: 229, G: 231, B: 235, A: 255}
	muted       = color.RGBA{R: 107, G: 114, B: 128, A: 255}
	ink         = color.RGBA{R: 17, G: 24, B: 39, A: 255}
)

var face font.Face = basicfont.Face7x13

// Options controls the parts of the card that are not taken from the profile.
type Options struct {
	// IssuedAt is printed in the header. Defaults to time.Now.
	IssuedAt time.Time
	// Number is the card number. Defaults to 8 random upper-case hex characters.
	Number string
}

// Render writes the card for p to w as a PNG. A photo that cannot be decoded,
// or is larger than photo.MaxDimension on a side, is drawn as the "No Photo"
// placeholder.
func Render(w io.Writer, p wizard.Profile, opts Options) error {
	if p.Name == "" || p.Email == "" || p.Age == "" {
		return ErrIncomplete
	}
	if opts.IssuedAt.IsZero() {
		opts.IssuedAt = time.Now()
	}
	if opts.Number == "" {
		opts.Number = NewNumber()
	}

	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	drawBody(img)

	// Header
	fill(img, image.Rect(0, 0, Width, headerHeight), primary)
	drawText(img, "ID CARD", padding, 34, color.White)
	date := opts.IssuedAt.Format("1/2/2006")
	drawText(img, date, Width-padding-textWidth(date), 34, color.White)

	// Photo
	center := image.Pt(Width/2, headerHeight+padding+photoRadius+borderWidth)
	fillCircle(img, center, photoRadius+borderWidth, color.White)
	if src := decodePhoto(p.Photo); src != nil {
		drawPhoto(img, src, center, photoRadius)
	} else {
		fillCircle(img, center, photoRadius, placeholder)
		drawCentered(img, "No Photo", center.Y+4, muted)
	}

	// Fields
	y := center.Y + photoRadius + borderWidth + 2*padding
	for _, row := range []struct{ label, value string }{
		{"NAME", p.Name},
		{"EMAIL", p.Email},
		{"AGE", p.Age + " years"},
	} {
		drawText(img, row.label, padding, y, muted)
		drawText(img, truncate(row.value, Width-2*padding), padding, y+18, ink)
		y += rowSpacing
	}

	// Footer
	fill(img, image.Rect(0, Height-footerHeight, Width, Height), footerFill)
	drawCentered(img, "ID #: "+opts.Number, Height-footerHeight/2+4, muted)

	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode card: %w", err)
	}
	return nil
}

// NewNumber returns a random 8 character card number.
func NewNumber() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
}

// FileName is the download name for name's card, e.g. "dana-smith-id-card.png".
func FileName(name string) string {
	slug := strings.ToLower(strings.Join(strings.Fields(name), "-"))
	if slug == "" {
		return "id-card.png"
	}
	return slug + "-id-card.png"
}

func decodePhoto(ref string) image.Image {
	if ref == "" {
		return nil
	}
	_, data, err := photo.Decode(ref)
	if err != nil {
		return nil
	}
	if err := photo.CheckDimensions(data); err != nil {
		return nil
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	return src
}

func drawBody(dst *image.RGBA) {
	for y := 0; y < Height; y++ {
		t := float64(y) / float64(Height-1)
		c := lerp(gradientTop, gradientEnd, t)
		fill(dst, image.Rect(0, y, Width, y+1), c)
	}
}

// drawPhoto scales the centre square of src into a circle of radius r.
func drawPhoto(dst *image.RGBA, src image.Image, center image.Point, r int) {
	b := src.Bounds()
	side := min(b.Dx(), b.Dy())
	sr := image.Rect(0, 0, side, side).Add(b.Min).Add(image.Pt((b.Dx()-side)/2, (b.Dy()-side)/2))

	scaled := image.NewRGBA(image.Rect(0, 0, 2*r, 2*r))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), src, sr, xdraw.Src, nil)

	mask := &circle{p: center, r: r}
	xdraw.DrawMask(dst, mask.Bounds(), scaled, image.Point{}, mask, mask.Bounds().Min, xdraw.Over)
}

func fill(dst *image.RGBA, r image.Rectangle, c color.Color) {
	xdraw.Draw(dst, r, image.NewUniform(c), image.Point{}, xdraw.Src)
}

func fillCircle(dst *image.RGBA, center image.Point, r int, c color.Color) {
	mask := &circle{p: center, r: r}
	xdraw.DrawMask(dst, mask.Bounds(), image.NewUniform(c), image.Point{}, mask, mask.Bounds().Min, xdraw.Over)
}

func drawText(dst *image.RGBA, s string, x, y int, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func drawCentered(dst *image.RGBA, s string, y int, c color.Color) {
	drawText(dst, s, (Width-textWidth(s))/2, y, c)
}

func textWidth(s string) int {
	return font.MeasureString(face, s).Ceil()
}

// truncate shortens s with an ellipsis until it fits in width pixels.
func truncate(s string, width int) string {
	if textWidth(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		if t := string(runes) + "..."; textWidth(t) <= width {
			return t
		}
	}
	return "..."
}

func lerp(a, b color.RGBA, t float64) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(float64(x) + (float64(y)-float64(x))*t)
	}
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 255}
}

// circle is an alpha mask that is opaque inside radius r of p.
type circle struct {
	p image.Point
	r int
}

func (c *circle) ColorModel() color.Model { return color.AlphaModel }

func (c *circle) Bounds() image.Rectangle {
	return image.Rect(c.p.X-c.r, c.p.Y-c.r, c.p.X+c.r, c.p.Y+c.r)
}

func (c *circle) At(x, y int) color.Color {
	xx, yy, rr := float64(x-c.p.X)+0.5, float64(y-c.p.Y)+0.5, float64(c.r)
	if xx*xx+yy*yy < rr*rr {
		return color.Alpha{A: 255}
	}
	return color.Alpha{}
}
