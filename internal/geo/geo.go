// Package geo provides the point-in-polygon primitive used for geofence
// containment checks. The functions are pure and operate on plain value
// types so they can be tested in isolation.
package geo

// Point is an ordered coordinate pair. X is longitude, Y is latitude.
type Point struct {
	X float64
	Y float64
}

// Polygon is an ordered sequence of vertices describing a simple closed
// boundary. The last vertex connects implicitly back to the first. A
// polygon with fewer than 3 vertices contains no points.
type Polygon []Point

// rayExtent is the x coordinate of the ray endpoint used by IsInside. It is
// far outside any realistic longitude extent.
const rayExtent = 10000

// orientation classifies the ordered triplet (p, q, r):
// 0 when collinear, 1 when clockwise, 2 when counterclockwise.
func orientation(p, q, r Point) int {
	val := (q.Y-p.Y)*(r.X-q.X) - (q.X-p.X)*(r.Y-q.Y)
	if val == 0 {
		return 0
	}
	if val > 0 {
		return 1
	}
	return 2
}

// onSegment reports whether point q, known to be collinear with segment pr,
// lies within its bounding box.
func onSegment(p, q, r Point) bool {
	return q.X <= max(p.X, r.X) && q.X >= min(p.X, r.X) &&
		q.Y <= max(p.Y, r.Y) && q.Y >= min(p.Y, r.Y)
}

// segmentsIntersect reports whether segments p1q1 and p2q2 intersect,
// including the collinear-overlap special cases.
func segmentsIntersect(p1, q1, p2, q2 Point) bool {
	o1 := orientation(p1, q1, p2)
	o2 := orientation(p1, q1, q2)
	o3 := orientation(p2, q2, p1)
	o4 := orientation(p2, q2, q1)

	if o1 != o2 && o3 != o4 {
		return true
	}

	if o1 == 0 && onSegment(p1, p2, q1) {
		return true
	}
	if o2 == 0 && onSegment(p1, q2, q1) {
		return true
	}
	if o3 == 0 && onSegment(p2, p1, q2) {
		return true
	}
	if o4 == 0 && onSegment(p2, q1, q2) {
		return true
	}

	return false
}

// IsInside reports whether p lies inside the polygon using ray casting: a
// ray from p to a sentinel point far to the east is tested against every
// edge, and p is inside iff the crossing count is odd. A point exactly on an
// edge is treated as inside. Polygons with fewer than 3 vertices contain no
// points.
func IsInside(polygon Polygon, p Point) bool {
	n := len(polygon)
	if n < 3 {
		return false
	}

	extreme := Point{X: rayExtent, Y: p.Y}

	count := 0
	for i := 0; i < n; i++ {
		next := (i + 1) % n
		if segmentsIntersect(polygon[i], polygon[next], p, extreme) {
			// Collinear with this edge: p is inside exactly when it lies
			// on the edge segment itself.
			if orientation(polygon[i], p, polygon[next]) == 0 {
				return onSegment(polygon[i], p, polygon[next])
			}
			count++
		}
	}
	return count%2 == 1
}
