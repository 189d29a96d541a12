package challenge

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math/rand"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

// ImageOptions control the rendered captcha image.
type ImageOptions struct {
	Width, Height   int
	FontSize        float64
	DistractorLines int
	NoisePoints     int
	BlurPasses      int
}

func DefaultImageOptions() ImageOptions {
	return ImageOptions{
		Width:           200,
		Height:          80,
		FontSize:        36,
		DistractorLines: 5,
		NoisePoints:     50,
		BlurPasses:      0,
	}
}

var (
	fontOnce sync.Once
	fontTTF  *truetype.Font
	fontErr  error
)

func loadFont() (*truetype.Font, error) {
	fontOnce.Do(func() {
		fontTTF, fontErr = truetype.Parse(goregular.TTF)
	})
	return fontTTF, fontErr
}

// RenderImage draws code onto a noisy image and returns it PNG-encoded.
func RenderImage(code string, opt ImageOptions, rng *rand.Rand) ([]byte, error) {
	font, err := loadFont()
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	dc := gg.NewContext(opt.Width, opt.Height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	face := truetype.NewFace(font, &truetype.Options{Size: opt.FontSize})
	dc.SetFontFace(face)

	w := float64(opt.Width)
	h := float64(opt.Height)

	chars := []rune(code)
	slot := w / float64(len(chars)+1)
	for i, ch := range chars {
		// Dark colors keep the glyphs legible against the noise.
		dc.SetRGB255(rng.Intn(101), rng.Intn(101), rng.Intn(101))
		x := slot * float64(i+1)
		y := h/2 + float64(rng.Intn(11)-5)
		dc.DrawStringAnchored(string(ch), x, y, 0.5, 0.5)
	}

	dc.SetLineWidth(2)
	for i := 0; i < opt.DistractorLines; i++ {
		dc.SetRGB255(rng.Intn(256), rng.Intn(256), rng.Intn(256))
		dc.DrawLine(
			float64(rng.Intn(opt.Width)), float64(rng.Intn(opt.Height)),
			float64(rng.Intn(opt.Width)), float64(rng.Intn(opt.Height)),
		)
		dc.Stroke()
	}

	for i := 0; i < opt.NoisePoints; i++ {
		dc.SetRGB255(rng.Intn(256), rng.Intn(256), rng.Intn(256))
		dc.SetPixel(rng.Intn(opt.Width), rng.Intn(opt.Height))
	}

	img := dc.Image()
	for i := 0; i < opt.BlurPasses; i++ {
		img = boxBlur(img)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

// boxBlur applies a single 3x3 mean filter pass.
func boxBlur(src image.Image) *image.RGBA {
	bounds := src.Bounds()
	dst := image.NewRGBA(bounds)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			var r, g, b, a, n uint32
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < bounds.Min.X || nx >= bounds.Max.X || ny < bounds.Min.Y || ny >= bounds.Max.Y {
						continue
					}
					pr, pg, pb, pa := src.At(nx, ny).RGBA()
					r += pr >> 8
					g += pg >> 8
					b += pb >> 8
					a += pa >> 8
					n++
				}
			}
			i := dst.PixOffset(x, y)
			dst.Pix[i+0] = uint8(r / n)
			dst.Pix[i+1] = uint8(g / n)
			dst.Pix[i+2] = uint8(b / n)
			dst.Pix[i+3] = uint8(a / n)
		}
	}
	return dst
}
