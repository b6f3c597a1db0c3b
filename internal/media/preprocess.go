package media

import (
	"image"
	"image/color"
	"sort"

	// registered decoders for intake formats
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// toGray converts via the standard ITU-R BT.601 luminance weighting.
// image.GrayModel applies the same weights; a manual loop keeps the pass cheap
// for the common NRGBA/YCbCr cases without per-pixel interface dispatch.
func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			// 0.299 R + 0.587 G + 0.114 B, in 16-bit channel space
			lum := (299*r + 587*g + 114*bl) / 1000
			out.SetGray(x-b.Min.X, y-b.Min.Y, color.Gray{Y: uint8(lum >> 8)})
		}
	}
	return out
}

// stretchContrast performs a percentile-based linear stretch over the luminance
// histogram, clipping the extreme tails (tail fraction per side, typically 1%).
func stretchContrast(src *image.Gray, tail float64) *image.Gray {
	b := src.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return src
	}

	var hist [256]int
	for _, px := range src.Pix {
		hist[px]++
	}

	clip := int(float64(total) * tail)
	lo, hi := 0, 255
	for acc := 0; lo < 255; lo++ {
		acc += hist[lo]
		if acc > clip {
			break
		}
	}
	for acc := 0; hi > 0; hi-- {
		acc += hist[hi]
		if acc > clip {
			break
		}
	}
	if hi <= lo {
		return src // flat image; nothing to stretch
	}

	out := image.NewGray(b)
	scale := 255.0 / float64(hi-lo)
	var lut [256]uint8
	for i := range lut {
		switch {
		case i <= lo:
			lut[i] = 0
		case i >= hi:
			lut[i] = 255
		default:
			lut[i] = uint8(float64(i-lo)*scale + 0.5)
		}
	}
	for i, px := range src.Pix {
		out.Pix[i] = lut[px]
	}
	return out
}

// medianFilter3x3 removes salt-and-pepper noise ahead of recognition.
// Border pixels are copied through unchanged.
func medianFilter3x3(src *image.Gray) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(b)
	copy(out.Pix, src.Pix)
	if w < 3 || h < 3 {
		return out
	}

	window := make([]uint8, 0, 9)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			window = window[:0]
			for dy := -1; dy <= 1; dy++ {
				row := (y+dy)*src.Stride + x - 1
				window = append(window, src.Pix[row], src.Pix[row+1], src.Pix[row+2])
			}
			sort.Slice(window, func(i, j int) bool { return window[i] < window[j] })
			out.Pix[y*out.Stride+x] = window[4]
		}
	}
	return out
}

// resizeToBand scales so the long edge lands inside [MinLongEdge, MaxLongEdge]:
// small scans are upscaled (capped at MaxUpscale), oversized ones downscaled.
func (n *Normalizer) resizeToBand(src *image.Gray) *image.Gray {
	b := src.Bounds()
	long := b.Dx()
	if b.Dy() > long {
		long = b.Dy()
	}
	if long == 0 {
		return src
	}

	var factor float64
	switch {
	case long < n.cfg.MinLongEdge:
		factor = float64(n.cfg.MinLongEdge) / float64(long)
		if factor > n.cfg.MaxUpscale {
			factor = n.cfg.MaxUpscale
		}
	case long > n.cfg.MaxLongEdge:
		factor = float64(n.cfg.MaxLongEdge) / float64(long)
	default:
		return src
	}

	dw := int(float64(b.Dx())*factor + 0.5)
	dh := int(float64(b.Dy())*factor + 0.5)
	dst := image.NewGray(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
