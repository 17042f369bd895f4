package preprocess

import (
	"image"
	"sort"

	xdraw "golang.org/x/image/draw"
)

func toGray(src image.Image) *image.Gray {
	if g, ok := src.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := src.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(g, g.Bounds(), src, b.Min, xdraw.Src)
	return g
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

func binarize(g *image.Gray, t uint8) *image.Gray {
	out := image.NewGray(g.Rect)
	for i, v := range g.Pix {
		if v > t {
			out.Pix[i] = 255
		}
	}
	return out
}

// otsuThreshold maximizes between-class variance of the histogram.
func otsuThreshold(g *image.Gray) uint8 {
	var hist [256]int
	for _, v := range g.Pix {
		hist[v]++
	}
	total := len(g.Pix)
	if total == 0 {
		return 127
	}
	var sum float64
	for i, n := range hist {
		sum += float64(i * n)
	}

	var sumB, best float64
	var wB int
	threshold := 0
	for t := 0; t < 256; t++ {
		wB += hist[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t * hist[t])
		mB := sumB / float64(wB)
		mF := (sum - sumB) / float64(wF)
		between := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			threshold = t
		}
	}
	return uint8(threshold)
}

func median3(g *image.Gray) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := image.NewGray(g.Rect)
	window := make([]uint8, 0, 9)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			window = window[:0]
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					window = append(window, g.Pix[clampIdx(y+dy, h)*g.Stride+clampIdx(x+dx, w)])
				}
			}
			sort.Slice(window, func(i, j int) bool { return window[i] < window[j] })
			out.Pix[y*out.Stride+x] = window[len(window)/2]
		}
	}
	return out
}

func clampIdx(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}

// adaptiveMean thresholds each pixel against the mean of its block minus c.
func adaptiveMean(g *image.Gray, block, c int) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	integral := make([]int64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		var row int64
		for x := 0; x < w; x++ {
			row += int64(g.Pix[y*g.Stride+x])
			integral[(y+1)*(w+1)+x+1] = integral[y*(w+1)+x+1] + row
		}
	}

	r := block / 2
	out := image.NewGray(g.Rect)
	for y := 0; y < h; y++ {
		y0, y1 := max(y-r, 0), min(y+r+1, h)
		for x := 0; x < w; x++ {
			x0, x1 := max(x-r, 0), min(x+r+1, w)
			area := int64((x1 - x0) * (y1 - y0))
			s := integral[y1*(w+1)+x1] - integral[y0*(w+1)+x1] - integral[y1*(w+1)+x0] + integral[y0*(w+1)+x0]
			if int64(g.Pix[y*g.Stride+x])*area > s-int64(c)*area {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}

// closeMorph is a dilation followed by an erosion of the white background.
func closeMorph(g *image.Gray, size int) *image.Gray {
	return morph(morph(g, size, true), size, false)
}

func morph(g *image.Gray, size int, dilate bool) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := image.NewGray(g.Rect)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var v uint8
			if !dilate {
				v = 255
			}
			for dy := 0; dy < size; dy++ {
				for dx := 0; dx < size; dx++ {
					p := g.Pix[clampIdx(y+dy-size/2, h)*g.Stride+clampIdx(x+dx-size/2, w)]
					if dilate && p > v || !dilate && p < v {
						v = p
					}
				}
			}
			out.Pix[y*out.Stride+x] = v
		}
	}
	return out
}

// clahe equalizes contrast per tile with a clipped histogram, bilinearly
// interpolating the tile mappings.
func clahe(g *image.Gray, tilesX, tilesY int, clipLimit float64) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	if w < tilesX || h < tilesY {
		return g
	}
	tw, th := (w+tilesX-1)/tilesX, (h+tilesY-1)/tilesY

	luts := make([][256]uint8, tilesX*tilesY)
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			var hist [256]int
			n := 0
			for y := ty * th; y < min((ty+1)*th, h); y++ {
				for x := tx * tw; x < min((tx+1)*tw, w); x++ {
					hist[g.Pix[y*g.Stride+x]]++
					n++
				}
			}
			luts[ty*tilesX+tx] = clippedLUT(hist, n, clipLimit)
		}
	}

	out := image.NewGray(g.Rect)
	for y := 0; y < h; y++ {
		fy := (float64(y)+0.5)/float64(th) - 0.5
		y0 := clampIdx(int(floor(fy)), tilesY)
		y1 := clampIdx(y0+1, tilesY)
		wy := fy - floor(fy)
		if fy < 0 {
			wy = 0
		}
		for x := 0; x < w; x++ {
			fx := (float64(x)+0.5)/float64(tw) - 0.5
			x0 := clampIdx(int(floor(fx)), tilesX)
			x1 := clampIdx(x0+1, tilesX)
			wx := fx - floor(fx)
			if fx < 0 {
				wx = 0
			}
			v := g.Pix[y*g.Stride+x]
			top := (1-wx)*float64(luts[y0*tilesX+x0][v]) + wx*float64(luts[y0*tilesX+x1][v])
			bot := (1-wx)*float64(luts[y1*tilesX+x0][v]) + wx*float64(luts[y1*tilesX+x1][v])
			out.Pix[y*out.Stride+x] = clamp((1-wy)*top + wy*bot)
		}
	}
	return out
}

func clippedLUT(hist [256]int, n int, clipLimit float64) [256]uint8 {
	var lut [256]uint8
	if n == 0 {
		for i := range lut {
			lut[i] = uint8(i)
		}
		return lut
	}
	limit := int(clipLimit * float64(n) / 256)
	if limit < 1 {
		limit = 1
	}
	excess := 0
	for i, c := range hist {
		if c > limit {
			excess += c - limit
			hist[i] = limit
		}
	}
	bonus := excess / 256
	for i := range hist {
		hist[i] += bonus
	}

	cdf := 0
	for i, c := range hist {
		cdf += c
		lut[i] = clamp(float64(cdf) * 255 / float64(n))
	}
	return lut
}

func floor(v float64) float64 {
	i := float64(int(v))
	if v < 0 && i != v {
		return i - 1
	}
	return i
}
