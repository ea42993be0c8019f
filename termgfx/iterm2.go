package termgfx

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
)

// itermEncoder emits the iTerm2 inline images protocol (OSC 1337): a single
// base64 PNG payload with explicit cell dimensions, terminated by BEL.
// WezTerm and a few others speak it too.
type itermEncoder struct {
	cellWidth  int
	cellHeight int
}

func (e *itermEncoder) Protocol() Protocol {
	return ITerm2
}

func (e *itermEncoder) Encode(img image.Image, cells Size) ([]byte, error) {
	if cells.Width < 1 || cells.Height < 1 {
		return nil, fmt.Errorf("iterm2: invalid cell rectangle %dx%d", cells.Width, cells.Height)
	}

	scaled := fit(img, cells.Width*e.cellWidth, cells.Height*e.cellHeight)

	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, scaled); err != nil {
		return nil, fmt.Errorf("iterm2: encode png: %w", err)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf,
		"\x1b]1337;File=inline=1;size=%d;width=%d;height=%d;preserveAspectRatio=1:",
		pngBuf.Len(), cells.Width, cells.Height,
	)
	buf.WriteString(base64.StdEncoding.EncodeToString(pngBuf.Bytes()))
	buf.WriteByte('\a')

	return buf.Bytes(), nil
}
