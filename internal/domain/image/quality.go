package image

import (
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"math"
)

const (
	blurThreshold     = 100.0
	brightnessMin     = 50.0
	brightnessMax     = 200.0
	contrastMin       = 30.0
	minEstimatedBytes = 5000
)

// Assess measures sharpness, exposure, contrast and resolution of img and
// grades the result.
func Assess(img image.Image) QualityReport {
	if img == nil {
		return QualityReport{Quality: QualityUnknown}
	}
	bounds := img.Bounds()
	gray := toGray(img)

	report := QualityReport{
		BlurScore:         laplacianVariance(gray),
		Resolution:        bounds.Dx() * bounds.Dy(),
		EstimatedFileSize: estimateJPEGSize(img),
		ColorRichness:     colorRichness(img),
	}
	report.Brightness, report.Contrast = meanStddev(gray.Pix)
	report.Quality = Grade(report)
	return report
}

// Grade turns measurements into a quality level. Each measurement scores
// 1, 0.5 or 0; a ratio of at least 0.8 is good and at least 0.5 fair.
func Grade(r QualityReport) Quality {
	score := 0.0

	switch {
	case r.BlurScore > blurThreshold:
		score++
	case r.BlurScore > blurThreshold*0.5:
		score += 0.5
	}

	switch {
	case r.Brightness >= brightnessMin && r.Brightness <= brightnessMax:
		score++
	case r.Brightness > 30 && r.Brightness < 220:
		score += 0.5
	}

	switch {
	case r.Contrast > contrastMin:
		score++
	case r.Contrast > contrastMin*0.5:
		score += 0.5
	}

	switch {
	case r.Resolution > 500000:
		score++
	case r.Resolution > 100000:
		score += 0.5
	}

	switch {
	case r.EstimatedFileSize > minEstimatedBytes:
		score++
	case r.EstimatedFileSize > minEstimatedBytes/2:
		score += 0.5
	}

	ratio := score / 5
	switch {
	case ratio >= 0.8:
		return QualityGood
	case ratio >= 0.5:
		return QualityFair
	default:
		return QualityPoor
	}
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray.SetGray(x-b.Min.X, y-b.Min.Y, color.GrayModel.Convert(img.At(x, y)).(color.Gray))
		}
	}
	return gray
}

// laplacianVariance is the variance of the 4-neighbour Laplacian over the
// interior pixels. Sharp images have strong edges and a high variance.
func laplacianVariance(g *image.Gray) float64 {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		return 0
	}
	px := func(x, y int) float64 { return float64(g.Pix[y*g.Stride+x]) }

	var sum, sumSq float64
	n := 0
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			lap := px(x-1, y) + px(x+1, y) + px(x, y-1) + px(x, y+1) - 4*px(x, y)
			sum += lap
			sumSq += lap * lap
			n++
		}
	}
	mean := sum / float64(n)
	return sumSq/float64(n) - mean*mean
}

func meanStddev(pix []uint8) (float64, float64) {
	if len(pix) == 0 {
		return 0, 0
	}
	var sum, sumSq float64
	for _, p := range pix {
		v := float64(p)
		sum += v
		sumSq += v * v
	}
	n := float64(len(pix))
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}

// colorRichness counts distinct colours after reducing each channel to 8
// levels, normalised by the 512 possible buckets.
func colorRichness(img image.Image) float64 {
	b := img.Bounds()
	var seen [512]bool
	unique := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			idx := (r>>13)<<6 | (g>>13)<<3 | bl>>13
			if !seen[idx] {
				seen[idx] = true
				unique++
			}
		}
	}
	return math.Min(float64(unique)/512.0, 1.0)
}

type countingWriter struct{ n int }

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += len(p)
	return len(p), nil
}

func estimateJPEGSize(img image.Image) int {
	cw := &countingWriter{}
	if err := jpeg.Encode(io.Writer(cw), img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return 0
	}
	return cw.n
}
