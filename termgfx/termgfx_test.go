package termgfx

import (
	"bytes"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/muesli/termenv"
	. "github.com/smartystreets/goconvey/convey"
)

func envMap(env map[string]string) func(string) string {
	return func(name string) string {
		return env[name]
	}
}

func testImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 11), B: 128, A: 255})
		}
	}
	return img
}

func TestDetect(t *testing.T) {
	Convey("Protocol detection", t, func() {
		Convey("An explicit configured protocol wins over the environment", func() {
			p := detect("sixel", envMap(map[string]string{"KITTY_WINDOW_ID": "1"}))
			So(p, ShouldEqual, Sixel)
		})

		Convey("An unknown configured protocol falls back to auto detection", func() {
			p := detect("webgl", envMap(map[string]string{"TERM_PROGRAM": "iTerm.app"}))
			So(p, ShouldEqual, ITerm2)
		})

		Convey("Kitty is recognized", func() {
			So(detect("auto", envMap(map[string]string{"KITTY_WINDOW_ID": "3"})), ShouldEqual, Kitty)
			So(detect("auto", envMap(map[string]string{"TERM": "xterm-kitty"})), ShouldEqual, Kitty)
			So(detect("auto", envMap(map[string]string{"TERM_PROGRAM": "WezTerm"})), ShouldEqual, Kitty)
			So(detect("auto", envMap(map[string]string{"TERM": "xterm-ghostty"})), ShouldEqual, Kitty)
		})

		Convey("iTerm2 is recognized", func() {
			So(detect("auto", envMap(map[string]string{"TERM_PROGRAM": "iTerm.app"})), ShouldEqual, ITerm2)
			So(detect("auto", envMap(map[string]string{"LC_TERMINAL": "iTerm2"})), ShouldEqual, ITerm2)
		})

		Convey("Sixel terminals are recognized", func() {
			So(detect("auto", envMap(map[string]string{"TERM": "foot"})), ShouldEqual, Sixel)
			So(detect("auto", envMap(map[string]string{"TERM": "mlterm"})), ShouldEqual, Sixel)
			So(detect("auto", envMap(map[string]string{"TERM": "xterm-sixel"})), ShouldEqual, Sixel)
		})

		Convey("Kitty takes precedence over a sixel-capable TERM", func() {
			env := envMap(map[string]string{"TERM": "foot", "KITTY_WINDOW_ID": "1"})
			So(detect("auto", env), ShouldEqual, Kitty)
		})

		Convey("A bare terminal falls back to halfblocks", func() {
			So(detect("", envMap(map[string]string{"TERM": "xterm-256color"})), ShouldEqual, Halfblocks)
		})
	})
}

func TestParseProtocol(t *testing.T) {
	Convey("Parsing protocol names", t, func() {
		for _, p := range []Protocol{Halfblocks, Sixel, ITerm2, Kitty} {
			parsed, err := ParseProtocol(p.String())
			So(err, ShouldBeNil)
			So(parsed, ShouldEqual, p)
		}

		_, err := ParseProtocol("braille")
		So(err, ShouldNotBeNil)
	})
}

func TestHalfblocks(t *testing.T) {
	Convey("Halfblocks encoding", t, func() {
		enc := &halfblocksEncoder{profile: termenv.TrueColor}

		Convey("It never fails, even on degenerate input", func() {
			for _, img := range []image.Image{
				testImage(1, 1),
				testImage(1, 300),
				testImage(300, 1),
				testImage(64, 64),
			} {
				out, err := enc.Encode(img, Size{Width: 10, Height: 5})
				So(err, ShouldBeNil)
				So(out, ShouldNotBeEmpty)
			}
		})

		Convey("Zero cell rectangles are clamped, not rejected", func() {
			out, err := enc.Encode(testImage(8, 8), Size{})
			So(err, ShouldBeNil)
			So(out, ShouldNotBeEmpty)
		})

		Convey("Output uses the upper half block glyph and resets each line", func() {
			out, err := enc.Encode(testImage(16, 16), Size{Width: 8, Height: 4})
			So(err, ShouldBeNil)
			So(string(out), ShouldContainSubstring, "▀")
			for _, line := range strings.Split(string(out), "\n") {
				So(line, ShouldEndWith, "\x1b[0m")
			}
		})

		Convey("Row count matches the cell height", func() {
			out, err := enc.Encode(testImage(100, 100), Size{Width: 10, Height: 5})
			So(err, ShouldBeNil)
			So(strings.Count(string(out), "\n"), ShouldEqual, 4)
		})
	})
}

func TestKitty(t *testing.T) {
	Convey("Kitty encoding", t, func() {
		enc := &kittyEncoder{cellWidth: defaultCellWidth, cellHeight: defaultCellHeight}

		Convey("The stream is chunked and well terminated", func() {
			out, err := enc.Encode(testImage(200, 200), Size{Width: 20, Height: 10})
			So(err, ShouldBeNil)
			So(bytes.HasPrefix(out, []byte("\x1b_Ga=T,f=100,c=20,r=10,m=")), ShouldBeTrue)
			So(bytes.HasSuffix(out, []byte("\x1b\\")), ShouldBeTrue)
			So(bytes.Contains(out, []byte("m=0;")), ShouldBeTrue)
		})

		Convey("Every chunk stays within the protocol limit", func() {
			out, err := enc.Encode(testImage(500, 500), Size{Width: 80, Height: 40})
			So(err, ShouldBeNil)
			for _, chunk := range bytes.Split(out, []byte("\x1b\\")) {
				if len(chunk) == 0 {
					continue
				}
				payload := chunk[bytes.IndexByte(chunk, ';')+1:]
				So(len(payload), ShouldBeLessThanOrEqualTo, kittyChunkSize)
			}
		})

		Convey("An empty cell rectangle is rejected", func() {
			_, err := enc.Encode(testImage(8, 8), Size{})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestITerm2(t *testing.T) {
	Convey("iTerm2 encoding", t, func() {
		enc := &itermEncoder{cellWidth: defaultCellWidth, cellHeight: defaultCellHeight}

		out, err := enc.Encode(testImage(64, 64), Size{Width: 8, Height: 4})
		So(err, ShouldBeNil)
		So(bytes.HasPrefix(out, []byte("\x1b]1337;File=inline=1;")), ShouldBeTrue)
		So(string(out), ShouldContainSubstring, "width=8")
		So(string(out), ShouldContainSubstring, "height=4")
		So(out[len(out)-1], ShouldEqual, byte('\a'))
	})
}

func TestSixel(t *testing.T) {
	Convey("Sixel encoding", t, func() {
		enc := &sixelEncoder{cellWidth: defaultCellWidth, cellHeight: defaultCellHeight}

		Convey("The stream carries the DCS framing and palette", func() {
			out, err := enc.Encode(testImage(60, 60), Size{Width: 10, Height: 5})
			So(err, ShouldBeNil)
			So(bytes.HasPrefix(out, []byte("\x1bPq")), ShouldBeTrue)
			So(bytes.HasSuffix(out, []byte("\x1b\\")), ShouldBeTrue)
			So(string(out), ShouldContainSubstring, "#215;2;100;100;100")
		})

		Convey("Oversized cell rectangles report ErrTooLarge", func() {
			_, err := enc.Encode(testImage(10, 10), Size{Width: 500, Height: 500})
			So(err, ShouldEqual, ErrTooLarge)
		})
	})
}

func TestCubeIndex(t *testing.T) {
	Convey("The 6-level cube mapping", t, func() {
		So(cubeIndex(0, 0, 0), ShouldEqual, 0)
		So(cubeIndex(255, 255, 255), ShouldEqual, 215)
		So(cubeIndex(255, 0, 0), ShouldEqual, 180)
	})
}

func TestFit(t *testing.T) {
	Convey("Downscaling preserves aspect ratio", t, func() {
		out := fit(testImage(200, 100), 50, 50)
		So(out.Bounds().Dx(), ShouldEqual, 50)
		So(out.Bounds().Dy(), ShouldEqual, 25)

		Convey("Images already inside the box keep their size", func() {
			out := fit(testImage(10, 10), 50, 50)
			So(out.Bounds().Dx(), ShouldEqual, 10)
			So(out.Bounds().Dy(), ShouldEqual, 10)
		})

		Convey("A extreme ratio never collapses to zero", func() {
			out := fit(testImage(1000, 1), 10, 10)
			So(out.Bounds().Dx(), ShouldEqual, 10)
			So(out.Bounds().Dy(), ShouldEqual, 1)
		})
	})
}
