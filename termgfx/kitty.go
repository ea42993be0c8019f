package termgfx

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
)

// kittyMaxPayload bounds the base64 payload of a single image transfer.
// Terminals are free to reject anything, but past this point even kitty
// itself starts dropping transmissions on slow links.
const kittyMaxPayload = 1 << 22

// kittyChunkSize is the maximum chunk length allowed by the protocol.
const kittyChunkSize = 4096

// kittyEncoder emits the kitty terminal graphics protocol: a PNG payload
// transmitted base64-encoded in 4096-byte chunks, displayed immediately
// and fitted into a cell rectangle.
type kittyEncoder struct {
	cellWidth  int
	cellHeight int
}

func (e *kittyEncoder) Protocol() Protocol {
	return Kitty
}

func (e *kittyEncoder) Encode(img image.Image, cells Size) ([]byte, error) {
	if cells.Width < 1 || cells.Height < 1 {
		return nil, fmt.Errorf("kitty: invalid cell rectangle %dx%d", cells.Width, cells.Height)
	}

	scaled := fit(img, cells.Width*e.cellWidth, cells.Height*e.cellHeight)

	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, scaled); err != nil {
		return nil, fmt.Errorf("kitty: encode png: %w", err)
	}

	payload := base64.StdEncoding.EncodeToString(pngBuf.Bytes())
	if len(payload) > kittyMaxPayload {
		return nil, ErrTooLarge
	}

	var buf bytes.Buffer
	first := true
	for len(payload) > 0 {
		chunk := payload
		if len(chunk) > kittyChunkSize {
			chunk = chunk[:kittyChunkSize]
		}
		payload = payload[len(chunk):]

		more := 0
		if len(payload) > 0 {
			more = 1
		}

		buf.WriteString("\x1b_G")
		if first {
			fmt.Fprintf(&buf, "a=T,f=100,c=%d,r=%d,m=%d", cells.Width, cells.Height, more)
			first = false
		} else {
			fmt.Fprintf(&buf, "m=%d", more)
		}
		buf.WriteByte(';')
		buf.WriteString(chunk)
		buf.WriteString("\x1b\\")
	}

	return buf.Bytes(), nil
}
