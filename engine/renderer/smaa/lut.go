package smaa

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/common"
)

// Lookup table dimensions.
const (
	AreaWidth    = 160
	AreaHeight   = 560
	SearchWidth  = 64
	SearchHeight = 16
)

const (
	// areaCell is the size of one edge pattern cell, the square root of the largest distance.
	areaCell = 16
	// areaSubtexHeight is the height of the region of one subsample offset.
	areaSubtexHeight = 5 * areaCell
	// smoothMaxDistance is the distance past which U-shaped patterns are not rounded.
	smoothMaxDistance = 32.0
)

// subsampleOffsets are the per-row subpixel offsets of the area table.
var subsampleOffsets = [7]float64{0.0, -0.25, 0.25, -0.125, 0.125, -0.375, 0.375}

// edgesOrtho maps an orthogonal pattern to the cell of the crossing edge pair it is stored in.
// The crossing edge values 0, 0.25, 0.75 and 1 land on cells 0, 1, 3 and 4.
var edgesOrtho = [16][2]int{
	{0, 0}, {3, 0}, {0, 3}, {3, 3},
	{1, 0}, {4, 0}, {1, 3}, {4, 3},
	{0, 1}, {3, 1}, {0, 4}, {3, 4},
	{1, 1}, {4, 1}, {1, 4}, {4, 4},
}

var (
	areaOnce   sync.Once
	areaData   common.TextureStagingData
	searchOnce sync.Once
	searchData common.TextureStagingData
)

// AreaTexture returns the RG8 table of precomputed coverage areas for orthogonal edge patterns.
// The diagonal half of the table (x >= 80) is left empty. The table is computed on first use and
// shared afterwards, callers must not modify the pixels.
//
// Returns:
//   - common.TextureStagingData: the 160x560 RG8 table
func AreaTexture() common.TextureStagingData {
	areaOnce.Do(func() {
		pixels := make([]byte, AreaWidth*AreaHeight*2)
		for row, offset := range subsampleOffsets {
			for pattern, cell := range edgesOrtho {
				for y := range areaCell {
					for x := range areaCell {
						a := areaOrtho(pattern, float64(x*x), float64(y*y), offset)
						px := cell[0]*areaCell + x
						py := row*areaSubtexHeight + cell[1]*areaCell + y
						i := (py*AreaWidth + px) * 2
						pixels[i] = unorm8(a[0])
						pixels[i+1] = unorm8(a[1])
					}
				}
			}
		}
		areaData = common.TextureStagingData{Pixels: pixels, Width: AreaWidth, Height: AreaHeight, BytesPerPixel: 2}
	})
	return areaData
}

// SearchTexture returns the R8 table the blending weight search uses to correct its last step.
// Texels hold 127 times the number of extra pixels to step. Like AreaTexture it is computed once.
//
// Returns:
//   - common.TextureStagingData: the 64x16 R8 table
func SearchTexture() common.TextureStagingData {
	searchOnce.Do(func() {
		pixels := make([]byte, SearchWidth*SearchHeight)
		for py := range SearchHeight {
			top, ok := bilinearEdges(32 - py)
			if !ok {
				continue
			}
			for px := range SearchWidth {
				delta := deltaLeft
				x := px
				if px >= 33 {
					delta = deltaRight
					x = px - 33
				}
				left, ok := bilinearEdges(x)
				if !ok {
					continue
				}
				pixels[py*SearchWidth+px] = byte(127 * delta(left, top))
			}
		}
		searchData = common.TextureStagingData{Pixels: pixels, Width: SearchWidth, Height: SearchHeight, BytesPerPixel: 1}
	})
	return searchData
}

// bilinearEdges reverses a bilinear edge fetch taken at (-0.25, -0.125). The fetch of edges
// e0 e1 (row above) and e2 e3 (current row) yields (e0 + 3*e1 + 7*e2 + 21*e3) / 32; k is that
// value times 32.
func bilinearEdges(k int) ([4]bool, bool) {
	weights := [4]int{1, 3, 7, 21}
	for bits := range 16 {
		sum := 0
		var e [4]bool
		for i, w := range weights {
			if bits&(1<<i) != 0 {
				e[i] = true
				sum += w
			}
		}
		if sum == k {
			return e, true
		}
	}
	return [4]bool{}, false
}

// deltaLeft is the extra distance to step after a search to the left stopped.
func deltaLeft(left, top [4]bool) int {
	d := 0
	if top[3] {
		d++
	}
	if d == 1 && top[2] && !left[1] && !left[3] {
		d++
	}
	return d
}

// deltaRight is the extra distance to step after a search to the right stopped.
func deltaRight(left, top [4]bool) int {
	d := 0
	if top[3] && !left[1] && !left[3] {
		d++
	}
	if d == 1 && top[2] && !left[0] && !left[2] {
		d++
	}
	return d
}

type point struct{ x, y float64 }

// area returns the coverage (below, above) of pixel x by the line p1-p2.
func area(p1, p2 point, x float64) [2]float64 {
	dx, dy := p2.x-p1.x, p2.y-p1.y
	x1, x2 := x, x+1
	y1 := p1.y + dy*(x1-p1.x)/dx
	y2 := p1.y + dy*(x2-p1.x)/dx

	inside := (x1 >= p1.x && x1 < p2.x) || (x2 > p1.x && x2 <= p2.x)
	if !inside {
		return [2]float64{}
	}

	trapezoid := math.Signbit(y1) == math.Signbit(y2) || math.Abs(y1) < 1e-4 || math.Abs(y2) < 1e-4
	if trapezoid {
		a := (y1 + y2) / 2
		if a < 0 {
			return [2]float64{math.Abs(a), 0}
		}
		return [2]float64{0, math.Abs(a)}
	}

	// the line crosses the pixel: two triangles
	xc := -p1.y*dx/dy + p1.x
	_, frac := math.Modf(xc)
	var a1, a2 float64
	if xc > p1.x {
		a1 = y1 * frac / 2
	}
	if xc < p2.x {
		a2 = y2 * (1 - frac) / 2
	}
	a := -a2
	if math.Abs(a1) > math.Abs(a2) {
		a = a1
	}
	if a < 0 {
		return [2]float64{math.Abs(a1), math.Abs(a2)}
	}
	return [2]float64{math.Abs(a2), math.Abs(a1)}
}

func addArea(a, b [2]float64) [2]float64 {
	return [2]float64{a[0] + b[0], a[1] + b[1]}
}

// smoothArea rounds the corners of short U-shaped patterns.
func smoothArea(d float64, a1, a2 [2]float64) [2]float64 {
	p := min(max(d/smoothMaxDistance, 0), 1)
	var out [2]float64
	for i := range out {
		b1 := math.Sqrt(a1[i]*2) * 0.5
		b2 := math.Sqrt(a2[i]*2) * 0.5
		out[i] = b1 + (a1[i]-b1)*p + b2 + (a2[i]-b2)*p
	}
	return out
}

// areaOrtho computes the coverage of the pixel at distance left from the left end of an
// orthogonal pattern. The pattern bits encode the crossing edges at both ends.
func areaOrtho(pattern int, left, right, offset float64) [2]float64 {
	d := left + right + 1
	o1 := 0.5 + offset
	o2 := o1 - 1
	mid := point{d / 2, 0}

	switch pattern {
	case 1:
		if left <= right {
			return area(point{0, o2}, mid, left)
		}
	case 2:
		if left >= right {
			return area(mid, point{d, o2}, left)
		}
	case 3:
		return smoothArea(d, area(point{0, o2}, mid, left), area(mid, point{d, o2}, left))
	case 4:
		if left <= right {
			return area(point{0, o1}, mid, left)
		}
	case 6:
		if math.Abs(offset) > 0 {
			a1 := area(point{0, o1}, point{d, o2}, left)
			a2 := addArea(area(point{0, o1}, mid, left), area(mid, point{d, o2}, left))
			return [2]float64{(a1[0] + a2[0]) / 2, (a1[1] + a2[1]) / 2}
		}
		return area(point{0, o1}, point{d, o2}, left)
	case 7, 14:
		return area(point{0, o1}, point{d, o2}, left)
	case 8:
		if left >= right {
			return area(mid, point{d, o1}, left)
		}
	case 9:
		if math.Abs(offset) > 0 {
			a1 := area(point{0, o2}, point{d, o1}, left)
			a2 := addArea(area(point{0, o2}, mid, left), area(mid, point{d, o1}, left))
			return [2]float64{(a1[0] + a2[0]) / 2, (a1[1] + a2[1]) / 2}
		}
		return area(point{0, o2}, point{d, o1}, left)
	case 11, 13:
		return area(point{0, o2}, point{d, o1}, left)
	case 12:
		return smoothArea(d, area(point{0, o1}, mid, left), area(mid, point{d, o1}, left))
	}
	return [2]float64{}
}

func unorm8(v float64) byte {
	return byte(math.Round(min(max(v, 0), 1) * 255))
}
