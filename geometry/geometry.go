// Package geometry wraps the computational-geometry engine used to derive
// spatial containment relationships. The core never implements geometry math
// itself; it consumes this capability interface.
package geometry

import (
	"fmt"

	"github.com/peterstace/simplefeatures/geom"
)

// ContainmentType records whether a geometry is fully or partially inside
// another. The values match the schema's containment_type enum.
type ContainmentType string

const (
	Full    ContainmentType = "Full"
	Partial ContainmentType = "Partial"
)

// fullThreshold is the overlap ratio above which containment counts as Full.
// Boundary noise in real parcel data makes an exact 1.0 test useless.
const fullThreshold = 0.95

// Containment is the derived relationship between a source and a target
// geometry: the classification plus the intersection-over-source-area ratio.
type Containment struct {
	Type         ContainmentType
	OverlapRatio float64
}

// Engine is the geometry capability consumed by the population pipeline.
type Engine interface {
	// Area returns the area of a WKT geometry in its coordinate units.
	Area(wkt string) (float64, error)

	// IntersectionArea returns the area of the intersection of two WKT geometries.
	IntersectionArea(a, b string) (float64, error)

	// Containment classifies how much of src lies inside dst. The overlap
	// ratio is intersection area divided by src area, clamped to [0,1].
	Containment(src, dst string) (Containment, error)

	// Intersects reports whether two WKT geometries share any point.
	Intersects(a, b string) (bool, error)
}

// WKTEngine implements Engine on top of simplefeatures.
type WKTEngine struct{}

// NewWKTEngine returns the default geometry engine.
func NewWKTEngine() *WKTEngine { return &WKTEngine{} }

func parse(wkt string) (geom.Geometry, error) {
	g, err := geom.UnmarshalWKT(wkt)
	if err != nil {
		return geom.Geometry{}, fmt.Errorf("parsing WKT: %w", err)
	}
	return g, nil
}

func (e *WKTEngine) Area(wkt string) (float64, error) {
	g, err := parse(wkt)
	if err != nil {
		return 0, err
	}
	return g.Area(), nil
}

func (e *WKTEngine) IntersectionArea(a, b string) (float64, error) {
	ga, err := parse(a)
	if err != nil {
		return 0, err
	}
	gb, err := parse(b)
	if err != nil {
		return 0, err
	}
	inter, err := geom.Intersection(ga, gb)
	if err != nil {
		return 0, fmt.Errorf("intersecting geometries: %w", err)
	}
	return inter.Area(), nil
}

func (e *WKTEngine) Intersects(a, b string) (bool, error) {
	ga, err := parse(a)
	if err != nil {
		return false, err
	}
	gb, err := parse(b)
	if err != nil {
		return false, err
	}
	return geom.Intersects(ga, gb), nil
}

func (e *WKTEngine) Containment(src, dst string) (Containment, error) {
	srcArea, err := e.Area(src)
	if err != nil {
		return Containment{}, err
	}
	if srcArea == 0 {
		return Containment{}, fmt.Errorf("source geometry has zero area")
	}
	interArea, err := e.IntersectionArea(src, dst)
	if err != nil {
		return Containment{}, err
	}

	ratio := interArea / srcArea
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}

	ct := Partial
	if ratio > fullThreshold {
		ct = Full
	}
	return Containment{Type: ct, OverlapRatio: ratio}, nil
}
