package card

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"regexp"
	"testing"
	"time"

	"github.com/tjfontaine/idcard-assistant/internal/photo"
	"github.com/tjfontaine/idcard-assistant/internal/testutil"
	"github.com/tjfontaine/idcard-assistant/internal/wizard"
)

var fixedOpts = Options{
	IssuedAt: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
	Number:   "AB12CD34",
}

func danaProfile() wizard.Profile {
	return wizard.Profile{Name: "Dana", Email: "dana@example.com", Age: "29"}
}

func solidPhoto(t *testing.T, c color.Color, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return photo.Encode("image/png", buf.Bytes())
}

func render(t *testing.T, p wizard.Profile) image.Image {
	t.Helper()
	var buf bytes.Buffer
	if err := Render(&buf, p, fixedOpts); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("png.Decode() error = %v", err)
	}
	return img
}

func TestRender_Dimensions(t *testing.T) {
	img := render(t, danaProfile())
	if b := img.Bounds(); b.Dx() != Width || b.Dy() != Height {
		t.Errorf("bounds = %v, want %dx%d", b, Width, Height)
	}
}

func TestRender_Incomplete(t *testing.T) {
	tests := []struct {
		name    string
		profile wizard.Profile
	}{
		{"empty", wizard.Profile{}},
		{"no email", wizard.Profile{Name: "Dana", Age: "29"}},
		{"no age", wizard.Profile{Name: "Dana", Email: "dana@example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Render(&buf, tt.profile, fixedOpts); !errors.Is(err, ErrIncomplete) {
				t.Errorf("Render() error = %v, want ErrIncomplete", err)
			}
			if buf.Len() != 0 {
				t.Error("Render() wrote output for an incomplete profile")
			}
		})
	}
}

func TestRender_Photo(t *testing.T) {
	p := danaProfile()
	p.Photo = solidPhoto(t, color.RGBA{R: 255, A: 255}, 40, 80)

	img := render(t, p)
	center := image.Pt(Width/2, headerHeight+padding+photoRadius+borderWidth)
	r, g, b, _ := img.At(center.X, center.Y-30).RGBA()
	if r>>8 < 200 || g>>8 > 50 || b>>8 > 50 {
		t.Errorf("photo pixel = (%d,%d,%d), want red", r>>8, g>>8, b>>8)
	}
}

func TestRender_Placeholder(t *testing.T) {
	tests := []struct {
		name  string
		photo string
	}{
		{"no photo", ""},
		{"undecodable photo", photo.Encode("image/png", []byte("not a png"))},
		{"huge canvas", photo.Encode("image/png", testutil.PNGWithDimensions(t, 60000, 60000))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := danaProfile()
			p.Photo = tt.photo

			img := render(t, p)
			center := image.Pt(Width/2, headerHeight+padding+photoRadius+borderWidth)
			got := color.RGBAModel.Convert(img.At(center.X, center.Y-30)).(color.RGBA)
			if got != placeholder {
				t.Errorf("placeholder pixel = %v, want %v", got, placeholder)
			}
		})
	}
}

func TestRender_Deterministic(t *testing.T) {
	var a, b bytes.Buffer
	if err := Render(&a, danaProfile(), fixedOpts); err != nil {
		t.Fatal(err)
	}
	if err := Render(&b, danaProfile(), fixedOpts); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Error("Render() output differs for identical input")
	}
}

func TestNewNumber(t *testing.T) {
	re := regexp.MustCompile(`^[0-9A-F]{8}$`)
	for i := 0; i < 10; i++ {
		if n := NewNumber(); !re.MatchString(n) {
			t.Errorf("NewNumber() = %q", n)
		}
	}
}

func TestFileName(t *testing.T) {
	tests := map[string]string{
		"Dana":           "dana-id-card.png",
		"Dana Smith":     "dana-smith-id-card.png",
		"Mary  Ann\tLee": "mary-ann-lee-id-card.png",
		"":               "id-card.png",
		"José Álvarez":   "josé-álvarez-id-card.png",
	}
	for in, want := range tests {
		if got := FileName(in); got != want {
			t.Errorf("FileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	long := "a.very.long.email.address.that.keeps.going@example-domain.com"
	got := truncate(long, 100)
	if textWidth(got) > 100 {
		t.Errorf("truncate() width = %d, want <= 100", textWidth(got))
	}
	if got[len(got)-3:] != "..." {
		t.Errorf("truncate() = %q, want ellipsis", got)
	}
	if truncate("short", 100) != "short" {
		t.Error("truncate() changed text that fits")
	}
}
