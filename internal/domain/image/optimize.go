package image

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

const (
	MaxDimension = 2048
	MinDimension = 224
	jpegQuality  = 85

	sharpenFactor  = 1.1
	contrastFactor = 1.05
)

// TargetSize returns the dimensions an image of w x h is resized to so both
// sides fall within MinDimension..MaxDimension. ok is false when no resize is
// needed.
func TargetSize(w, h int) (int, int, bool) {
	if w <= 0 || h <= 0 {
		return w, h, false
	}
	aspect := float64(w) / float64(h)
	switch {
	case w > MaxDimension || h > MaxDimension:
		if aspect > 1 {
			return MaxDimension, max(1, int(MaxDimension/aspect)), true
		}
		return max(1, int(MaxDimension*aspect)), MaxDimension, true
	case w < MinDimension || h < MinDimension:
		if aspect > 1 {
			return int(MinDimension * aspect), MinDimension, true
		}
		return MinDimension, int(MinDimension / aspect), true
	}
	return w, h, false
}

// Optimize resizes img into the model-friendly range and applies a light
// sharpen and contrast lift.
func Optimize(img image.Image) *image.NRGBA {
	b := img.Bounds()
	w, h, resize := TargetSize(b.Dx(), b.Dy())

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if resize {
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	} else {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	}

	dst = sharpen(dst, sharpenFactor)
	adjustContrast(dst, contrastFactor)
	return dst
}

// Encode writes img as JPEG at quality 85 over a white background, or as PNG
// when transparency must be kept. It returns the bytes and the format used.
func Encode(img image.Image, keepAlpha bool) ([]byte, string, error) {
	var buf bytes.Buffer
	if keepAlpha {
		if err := png.Encode(&buf, img); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "png", nil
	}

	b := img.Bounds()
	flat := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(flat, flat.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), img, b.Min, draw.Over)
	if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "jpeg", nil
}

// sharpen blends src with its 3x3 box blur: out = blur + factor*(src-blur).
func sharpen(src *image.NRGBA, factor float64) *image.NRGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		return src
	}
	out := image.NewNRGBA(b)
	copy(out.Pix, src.Pix)

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*src.Stride + x*4
			for c := 0; c < 3; c++ {
				var sum float64
				for dy := -1; dy <= 1; dy++ {
					row := (y + dy) * src.Stride
					for dx := -1; dx <= 1; dx++ {
						sum += float64(src.Pix[row+(x+dx)*4+c])
					}
				}
				blur := sum / 9
				out.Pix[i+c] = clamp(blur + factor*(float64(src.Pix[i+c])-blur))
			}
		}
	}
	return out
}

// adjustContrast scales each channel away from the mean luminance in place.
func adjustContrast(img *image.NRGBA, factor float64) {
	var sum float64
	n := 0
	for i := 0; i+3 < len(img.Pix); i += 4 {
		r, g, b := float64(img.Pix[i]), float64(img.Pix[i+1]), float64(img.Pix[i+2])
		sum += 0.299*r + 0.587*g + 0.114*b
		n++
	}
	if n == 0 {
		return
	}
	mean := sum / float64(n)
	for i := 0; i+3 < len(img.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			img.Pix[i+c] = clamp(mean + factor*(float64(img.Pix[i+c])-mean))
		}
	}
}

func clamp(v float64) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return uint8(v + 0.5)
}
