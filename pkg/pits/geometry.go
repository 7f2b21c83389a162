package pits

import "github.com/paulmach/orb"

// Centroid returns the arithmetic mean of every vertex of g, closing ring
// vertices included. It reports false for empty or nil geometries.
func Centroid(g orb.Geometry) (orb.Point, bool) {
	var sumX, sumY float64
	n := 0
	eachVertex(g, func(p orb.Point) {
		sumX += p[0]
		sumY += p[1]
		n++
	})
	if n == 0 {
		return orb.Point{}, false
	}
	return orb.Point{sumX / float64(n), sumY / float64(n)}, true
}

func eachVertex(g orb.Geometry, fn func(orb.Point)) {
	switch g := g.(type) {
	case orb.Point:
		fn(g)
	case orb.MultiPoint:
		for _, p := range g {
			fn(p)
		}
	case orb.LineString:
		for _, p := range g {
			fn(p)
		}
	case orb.Ring:
		for _, p := range g {
			fn(p)
		}
	case orb.MultiLineString:
		for _, ls := range g {
			eachVertex(ls, fn)
		}
	case orb.Polygon:
		for _, r := range g {
			eachVertex(r, fn)
		}
	case orb.MultiPolygon:
		for _, poly := range g {
			eachVertex(poly, fn)
		}
	case orb.Collection:
		for _, sub := range g {
			eachVertex(sub, fn)
		}
	case orb.Bound:
		eachVertex(g.ToPolygon(), fn)
	}
}
