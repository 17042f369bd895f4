package preprocess

import (
	"context"
	"image"

	"github.com/disintegration/imaging"
)

// Region names of the SICAL consultation screen.
const (
	RegionHeader     = "header"
	RegionLeftPanel  = "left_panel"
	RegionRightPanel = "right_panel"
	RegionBottom     = "bottom"
)

// RegionPrefix marks the strategy name of a region variant.
const RegionPrefix = "region:"

// Region is a fixed rectangle of the screen given as fractions of the image size.
type Region struct {
	Name   string
	X0, Y0 float64
	X1, Y1 float64
}

// DefaultRegions returns the screen layout: year and concept in the top 15%,
// initial balances on the left, movements on the right, pending amounts below.
func DefaultRegions() []Region {
	return []Region{
		{Name: RegionHeader, X0: 0, Y0: 0, X1: 1, Y1: 0.15},
		{Name: RegionLeftPanel, X0: 0, Y0: 0.15, X1: 0.55, Y1: 0.65},
		{Name: RegionRightPanel, X0: 0.55, Y0: 0.15, X1: 1, Y1: 0.65},
		{Name: RegionBottom, X0: 0, Y0: 0.65, X1: 1, Y1: 1},
	}
}

// Rect maps the region onto bounds b.
func (r Region) Rect(b image.Rectangle) image.Rectangle {
	w, h := float64(b.Dx()), float64(b.Dy())
	return image.Rect(
		b.Min.X+int(w*r.X0), b.Min.Y+int(h*r.Y0),
		b.Min.X+int(w*r.X1), b.Min.Y+int(h*r.Y1),
	).Intersect(b)
}

// Regions crops each region out of data and binarizes it with Otsu's
// threshold. Regions that fall outside the image or fail are skipped.
func (g *Generator) Regions(ctx context.Context, data []byte, regions []Region) []Variant {
	if len(regions) == 0 {
		return nil
	}
	src, err := Decode(data)
	if err != nil {
		g.logger.Warn("cannot decode source image for regions", "error", err, "bytes", len(data))
		return nil
	}

	variants := make([]Variant, 0, len(regions))
	for _, r := range regions {
		if ctx.Err() != nil {
			break
		}
		rect := r.Rect(src.Bounds())
		if rect.Empty() {
			g.logger.Debug("region outside image", "region", r.Name, "bounds", src.Bounds())
			continue
		}
		s := NewStrategy(RegionPrefix+r.Name, func(img image.Image) (image.Image, error) {
			gray := toGray(imaging.Crop(img, rect))
			return binarize(gray, otsuThreshold(gray)), nil
		})
		v, err := g.apply(s, src)
		if err != nil {
			g.logger.Warn("region crop failed", "region", r.Name, "error", err)
			continue
		}
		v.Region = r.Name
		variants = append(variants, v)
	}
	return variants
}
