// Package triangle selects the alignment points used to correct a position:
// it filters and ranks candidate points by distance, enumerates the
// triangles they form and keeps those that enclose the target.
package triangle

import (
	"fmt"
	"math"
	"sort"

	"github.com/thurmanmarka/nstaralign/internal/coords"
)

// DefaultMaxCombinations caps the number of candidates fed into triangle
// enumeration.
const DefaultMaxCombinations = 50

// containsTolerance is the slack allowed when comparing the sum of
// sub-triangle areas with the whole, in scaled area units.
const containsTolerance = 2.0

// Filter restricts which points may form a triangle.
type Filter int

const (
	// FilterAll uses every point.
	FilterAll Filter = iota

	// FilterPierSide uses points on the same side of the pier as the target.
	FilterPierSide

	// FilterLocalQuadrant uses points in the same quadrant as the target.
	FilterLocalQuadrant
)

func (f Filter) String() string {
	switch f {
	case FilterAll:
		return "all"
	case FilterPierSide:
		return "pierside"
	case FilterLocalQuadrant:
		return "quadrant"
	default:
		return fmt.Sprintf("Filter(%d)", int(f))
	}
}

// Policy decides which enclosing triangles are returned and in what order.
type Policy int

const (
	// NearestEnclosing returns the first enclosing triangle found while
	// enumerating candidates in distance order.
	NearestEnclosing Policy = iota

	// BestCentre returns every enclosing triangle ordered by the distance
	// from its centroid to the target.
	BestCentre
)

func (p Policy) String() string {
	switch p {
	case NearestEnclosing:
		return "nearest"
	case BestCentre:
		return "centre"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// Options control candidate selection.
type Options struct {
	Filter          Filter
	Policy          Policy
	LocalPier       bool // rank by raw encoder distance instead of working-frame distance
	MaxCombinations int  // 0 means DefaultMaxCombinations
}

// Vertex is one alignment point as seen by the selector.
type Vertex struct {
	Index int                    // position in the caller's point list
	Point coords.Coord           // working-frame projection
	Raw   coords.EncoderPosition // raw encoder counts
}

// Triangle is three vertices.
type Triangle [3]Vertex

// Indices returns the caller indices of the three vertices.
func (t Triangle) Indices() [3]int {
	return [3]int{t[0].Index, t[1].Index, t[2].Index}
}

// Centroid returns the arithmetic mean of the vertices.
func (t Triangle) Centroid() coords.Coord {
	return Centroid(t[0].Point, t[1].Point, t[2].Point)
}

// Contains reports whether p lies inside or on the edge of the triangle.
func (t Triangle) Contains(p coords.Coord) bool {
	return Contains(p, t[0].Point, t[1].Point, t[2].Point)
}

// Selection is the outcome of Select.
type Selection struct {
	// Enclosing triangles in policy order; empty when none enclose the target.
	Enclosing []Triangle

	// Candidates are the filtered vertices ordered by distance, capped at
	// MaxCombinations.
	Candidates []Vertex

	// Nearest holds up to three globally nearest vertices, ignoring the
	// filter.
	Nearest []Vertex
}

// Closest returns the nearest filtered candidate.
func (s Selection) Closest() (Vertex, bool) {
	if len(s.Candidates) == 0 {
		return Vertex{}, false
	}
	return s.Candidates[0], true
}

// NearestTriangle returns the three globally nearest vertices as a triangle.
func (s Selection) NearestTriangle() (Triangle, bool) {
	if len(s.Nearest) < 3 {
		return Triangle{}, false
	}
	return Triangle{s.Nearest[0], s.Nearest[1], s.Nearest[2]}, true
}

// -----------------------------
// Geometry
// -----------------------------

// Area returns the area of triangle abc. Cross terms are scaled down by
// 10000 to keep encoder-sized products in range, so the result is in units
// of 10000 square steps.
func Area(a, b, c coords.Coord) float64 {
	s := (b.X*a.Y-a.X*b.Y)/10000 +
		(c.X*b.Y-b.X*c.Y)/10000 +
		(a.X*c.Y-c.X*a.Y)/10000
	return math.Abs(s) / 2
}

// Contains reports whether p is inside triangle abc by comparing the area
// of abc with the sum of the three sub-triangles formed with p. Points on
// an edge or vertex count as inside.
func Contains(p, a, b, c coords.Coord) bool {
	whole := Area(a, b, c)
	t1 := Area(p, b, c)
	t2 := Area(a, p, c)
	t3 := Area(a, b, p)
	return math.Abs(whole-t1-t2-t3) < containsTolerance
}

// Centroid returns the arithmetic mean of a, b and c.
func Centroid(a, b, c coords.Coord) coords.Coord {
	return coords.Coord{
		X: (a.X + b.X + c.X) / 3,
		Y: (a.Y + b.Y + c.Y) / 3,
		Z: (a.Z + b.Z + c.Z) / 3,
	}
}

// Quadrant numbers the plane: 0 (x≥0,y≥0), 1 (x≥0,y<0), 2 (x<0,y≥0),
// 3 (x<0,y<0).
func Quadrant(c coords.Coord) int {
	q := 0
	if c.X < 0 {
		q += 2
	}
	if c.Y < 0 {
		q++
	}
	return q
}

// -----------------------------
// Selection
// -----------------------------

type ranked struct {
	v    Vertex
	dist float64
}

// Select ranks vertices by distance to the target and returns the
// triangles that enclose it together with the nearest-point fallbacks.
func Select(target coords.Coord, raw coords.EncoderPosition, vertices []Vertex, opts Options) Selection {
	limit := opts.MaxCombinations
	if limit <= 0 {
		limit = DefaultMaxCombinations
	}

	distance := func(v Vertex) float64 {
		if opts.LocalPier {
			return v.Raw.DistanceSquared(raw)
		}
		return v.Point.DistanceSquared(target)
	}

	all := make([]ranked, 0, len(vertices))
	filtered := make([]ranked, 0, len(vertices))
	targetQuadrant := Quadrant(target)
	for _, v := range vertices {
		r := ranked{v: v, dist: distance(v)}
		all = append(all, r)

		switch opts.Filter {
		case FilterPierSide:
			if v.Point.Y*target.Y < 0 {
				continue
			}
		case FilterLocalQuadrant:
			if Quadrant(v.Point) != targetQuadrant {
				continue
			}
		}
		filtered = append(filtered, r)
	}

	byDistance := func(rs []ranked) {
		sort.SliceStable(rs, func(i, j int) bool { return rs[i].dist < rs[j].dist })
	}
	byDistance(all)
	byDistance(filtered)

	if len(filtered) > limit {
		filtered = filtered[:limit]
	}

	sel := Selection{
		Candidates: make([]Vertex, len(filtered)),
	}
	for i, r := range filtered {
		sel.Candidates[i] = r.v
	}
	for i := 0; i < len(all) && i < 3; i++ {
		sel.Nearest = append(sel.Nearest, all[i].v)
	}

	if len(sel.Candidates) < 3 {
		return sel
	}
	sel.Enclosing = enclosing(target, sel.Candidates, opts.Policy)
	return sel
}

func enclosing(target coords.Coord, cands []Vertex, policy Policy) []Triangle {
	type scored struct {
		tri  Triangle
		dist float64
	}

	var found []scored
	n := len(cands)
	for i := 0; i < n-2; i++ {
		for j := i + 1; j < n-1; j++ {
			for k := j + 1; k < n; k++ {
				tri := Triangle{cands[i], cands[j], cands[k]}
				if !tri.Contains(target) {
					continue
				}
				if policy == NearestEnclosing {
					return []Triangle{tri}
				}
				found = append(found, scored{tri: tri, dist: tri.Centroid().DistanceSquared(target)})
			}
		}
	}

	sort.SliceStable(found, func(a, b int) bool { return found[a].dist < found[b].dist })
	out := make([]Triangle, len(found))
	for i, s := range found {
		out[i] = s.tri
	}
	return out
}
