package termgfx

import (
	"image"

	"golang.org/x/image/draw"
)

// fit scales a bitmap down to fill the given pixel box while preserving its
// aspect ratio. Images already inside the box are returned untouched.
func fit(img image.Image, maxWidth, maxHeight int) *image.RGBA {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()

	dstW, dstH := srcW, srcH
	if srcW > maxWidth || srcH > maxHeight {
		scaleW := float64(maxWidth) / float64(srcW)
		scaleH := float64(maxHeight) / float64(srcH)
		scale := scaleW
		if scaleH < scale {
			scale = scaleH
		}

		dstW = int(float64(srcW) * scale)
		dstH = int(float64(srcH) * scale)
	}
	if dstW < 1 {
		dstW = 1
	}
	if dstH < 1 {
		dstH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
