package termgfx

import (
	"bytes"
	"fmt"
	"image"
)

// sixelMaxDim bounds the pixel dimensions of a sixel transfer. Past this
// the escape stream gets large enough to visibly stall slower terminals.
const sixelMaxDim = 1000

// sixelEncoder emits DEC sixel graphics with a fixed 216-color palette
// (a 6-level RGB cube, the same cube the 256-color ANSI space uses).
type sixelEncoder struct {
	cellWidth  int
	cellHeight int
}

func (e *sixelEncoder) Protocol() Protocol {
	return Sixel
}

func (e *sixelEncoder) Encode(img image.Image, cells Size) ([]byte, error) {
	if cells.Width < 1 || cells.Height < 1 {
		return nil, fmt.Errorf("sixel: invalid cell rectangle %dx%d", cells.Width, cells.Height)
	}

	maxW, maxH := cells.Width*e.cellWidth, cells.Height*e.cellHeight
	if maxW > sixelMaxDim || maxH > sixelMaxDim {
		return nil, ErrTooLarge
	}

	scaled := fit(img, maxW, maxH)
	bounds := scaled.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	// Palette index per pixel, row-major.
	indexed := make([]int, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := scaled.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			indexed[y*width+x] = cubeIndex(r>>8, g>>8, b>>8)
		}
	}

	var buf bytes.Buffer
	buf.WriteString("\x1bPq")
	fmt.Fprintf(&buf, "\"1;1;%d;%d", width, height)

	// 6-level cube, channel values on the 0-100 scale sixel expects.
	for i := 0; i < 216; i++ {
		r := (i / 36) * 20
		g := (i / 6 % 6) * 20
		b := (i % 6) * 20
		fmt.Fprintf(&buf, "#%d;2;%d;%d;%d", i, r, g, b)
	}

	for top := 0; top < height; top += 6 {
		rows := height - top
		if rows > 6 {
			rows = 6
		}

		seen := map[int]bool{}
		var colors []int
		for dy := 0; dy < rows; dy++ {
			for x := 0; x < width; x++ {
				if c := indexed[(top+dy)*width+x]; !seen[c] {
					seen[c] = true
					colors = append(colors, c)
				}
			}
		}

		for n, color := range colors {
			fmt.Fprintf(&buf, "#%d", color)
			writeSixelRow(&buf, indexed, width, top, rows, color)
			if n < len(colors)-1 {
				buf.WriteByte('$')
			}
		}
		buf.WriteByte('-')
	}

	buf.WriteString("\x1b\\")
	return buf.Bytes(), nil
}

// writeSixelRow emits one color plane of a 6-row band, run-length encoded.
func writeSixelRow(buf *bytes.Buffer, indexed []int, width, top, rows, color int) {
	prev := byte(0)
	run := 0
	flush := func() {
		if run == 0 {
			return
		}
		if run > 3 {
			fmt.Fprintf(buf, "!%d%c", run, prev)
		} else {
			for i := 0; i < run; i++ {
				buf.WriteByte(prev)
			}
		}
		run = 0
	}

	for x := 0; x < width; x++ {
		bits := 0
		for dy := 0; dy < rows; dy++ {
			if indexed[(top+dy)*width+x] == color {
				bits |= 1 << dy
			}
		}
		ch := byte(0x3f + bits)
		if ch != prev {
			flush()
			prev = ch
		}
		run++
	}
	flush()
}

// cubeIndex maps an 8-bit RGB triple onto the 216-color cube.
func cubeIndex(r, g, b uint32) int {
	level := func(c uint32) int {
		l := int(c) * 6 / 256
		if l > 5 {
			l = 5
		}
		return l
	}
	return level(r)*36 + level(g)*6 + level(b)
}
