package termgfx

import (
	"bytes"
	"fmt"
	"image"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/termenv"
)

// halfblocksEncoder renders a bitmap with "▀" glyphs, packing two vertical
// pixels into every cell via foreground/background colors. It trades
// resolution for universal terminal compatibility and never fails.
type halfblocksEncoder struct {
	profile termenv.Profile
}

func (e *halfblocksEncoder) Protocol() Protocol {
	return Halfblocks
}

func (e *halfblocksEncoder) Encode(img image.Image, cells Size) ([]byte, error) {
	if cells.Width < 1 {
		cells.Width = 1
	}
	if cells.Height < 1 {
		cells.Height = 1
	}

	// One pixel per half cell.
	scaled := fit(img, cells.Width, cells.Height*2)
	bounds := scaled.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	var buf bytes.Buffer
	for y := 0; y < height; y += 2 {
		for x := 0; x < width; x++ {
			top := e.cellColor(scaled, x, y)
			bottom := top
			if y+1 < height {
				bottom = e.cellColor(scaled, x, y+1)
			}
			fmt.Fprintf(&buf, "\x1b[%s;%sm▀", top.Sequence(false), bottom.Sequence(true))
		}
		buf.WriteString("\x1b[0m")
		if y+2 < height {
			buf.WriteByte('\n')
		}
	}

	return buf.Bytes(), nil
}

// cellColor samples a pixel and degrades it to the terminal's color profile.
func (e *halfblocksEncoder) cellColor(img *image.RGBA, x, y int) termenv.Color {
	r, g, b, _ := img.At(img.Bounds().Min.X+x, img.Bounds().Min.Y+y).RGBA()
	c := colorful.Color{
		R: float64(r) / 0xffff,
		G: float64(g) / 0xffff,
		B: float64(b) / 0xffff,
	}
	return e.profile.Color(c.Hex())
}
