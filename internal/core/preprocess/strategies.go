package preprocess

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
)

// Strategy names, in default application order.
const (
	StrategyGrayOtsu       = "gray-otsu"
	StrategyCLAHEAdaptive  = "clahe-adaptive"
	StrategyContrastClose  = "contrast-close"
	StrategyUpscaleSharpen = "upscale-sharpen"
)

// DefaultStrategies returns the fixed strategy list tuned for SICAL screens.
func DefaultStrategies() []Strategy {
	return []Strategy{
		NewStrategy(StrategyGrayOtsu, grayOtsu),
		NewStrategy(StrategyCLAHEAdaptive, claheAdaptive),
		NewStrategy(StrategyContrastClose, contrastClose),
		NewStrategy(StrategyUpscaleSharpen, upscaleSharpen),
	}
}

// grayOtsu: grayscale, global Otsu threshold, 3x3 median.
func grayOtsu(src image.Image) (image.Image, error) {
	g := toGray(src)
	bin := binarize(g, otsuThreshold(g))
	return median3(bin), nil
}

// claheAdaptive: local contrast equalization, light blur, adaptive mean threshold.
func claheAdaptive(src image.Image) (image.Image, error) {
	g := clahe(toGray(src), 8, 8, 2.0)
	blurred := toGray(imaging.Blur(g, 1.0))
	return adaptiveMean(blurred, 11, 2), nil
}

// contrastClose: contrast stretch, fixed threshold, 2x2 closing.
func contrastClose(src image.Image) (image.Image, error) {
	stretched := imaging.AdjustFunc(imaging.Grayscale(src), func(c color.NRGBA) color.NRGBA {
		v := clamp(float64(c.R) * 1.5)
		return color.NRGBA{R: v, G: v, B: v, A: 255}
	})
	bin := binarize(toGray(stretched), 150)
	return closeMorph(bin, 2), nil
}

// upscaleSharpen: 2x Catmull-Rom upscale, sharpen, fixed threshold.
func upscaleSharpen(src image.Image) (image.Image, error) {
	b := src.Bounds()
	up := image.NewGray(image.Rect(0, 0, b.Dx()*2, b.Dy()*2))
	xdraw.CatmullRom.Scale(up, up.Bounds(), toGray(src), b, xdraw.Src, nil)
	sharp := imaging.Sharpen(up, 1.0)
	return binarize(toGray(sharp), 200), nil
}
