package mcpserver

import (
	"math"

	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/domain"
)

const (
	GridSize = 20.0 // placement grid in page units
	Padding  = 40.0 // 2 grid cells between elements
	MaxRowW  = 1920.0
)

// LayoutEngine places elements added without a position so that they
// don't overlap what is already on the page.
type LayoutEngine struct {
	gridSize float64
	padding  float64
	maxRowW  float64
}

func NewLayoutEngine() *LayoutEngine {
	return &LayoutEngine{
		gridSize: GridSize,
		padding:  Padding,
		maxRowW:  MaxRowW,
	}
}

// snap rounds v to the nearest grid point.
func (le *LayoutEngine) snap(v float64) float64 {
	return math.Round(v/le.gridSize) * le.gridSize
}

// rect is a simple axis-aligned bounding box.
type rect struct {
	x, y, w, h float64
}

func (a rect) intersects(b rect) bool {
	return a.x < b.x+b.w && a.x+a.w > b.x &&
		a.y < b.y+b.h && a.y+a.h > b.y
}

// boundsOf reads an element's box from its data. Elements without a
// height are treated as square.
func boundsOf(e domain.CanvasElement) rect {
	num := func(k string) float64 {
		f, _ := e.Data[k].(float64)
		return f
	}
	r := rect{x: num("left"), y: num("top"), w: num("width"), h: num("height")}
	if r.h == 0 {
		r.h = r.w
	}
	return r
}

// NextPosition finds the next non-overlapping grid position (left, top) for
// an element of size (newW, newH) given the elements on the page.
func (le *LayoutEngine) NextPosition(existing []domain.CanvasElement, newW, newH float64) (float64, float64) {
	if len(existing) == 0 {
		return 0, 0
	}

	occupied := make([]rect, len(existing))
	for i, e := range existing {
		occupied[i] = boundsOf(e)
	}

	// Scan rows top-to-bottom, columns left-to-right
	candidate := rect{w: newW, h: newH}
	for y := 0.0; y < 20000; y += le.gridSize {
		for x := 0.0; x+newW <= le.maxRowW; x += le.gridSize {
			candidate.x = le.snap(x)
			candidate.y = le.snap(y)

			overlaps := false
			for _, occ := range occupied {
				padded := rect{
					x: occ.x - le.padding,
					y: occ.y - le.padding,
					w: occ.w + le.padding*2,
					h: occ.h + le.padding*2,
				}
				if candidate.intersects(padded) {
					overlaps = true
					break
				}
			}
			if !overlaps {
				return candidate.x, candidate.y
			}
		}
	}

	// Fallback: place below everything
	maxY := 0.0
	for _, r := range occupied {
		if r.y+r.h > maxY {
			maxY = r.y + r.h
		}
	}
	return 0, le.snap(maxY + le.padding)
}
