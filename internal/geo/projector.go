// Package geo maps geographic coordinates and named locations into
// drawing-surface space.
package geo

import (
	"math"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"

	"github.com/clutterstack/flymap/internal/atlas"
	"github.com/clutterstack/flymap/internal/util"
	"github.com/clutterstack/flymap/pkg/core"
)

// Mode selects the projection math.
type Mode string

const (
	// ModeEquirect is a linear lat/lng scale into the bounding box. The
	// source system uses this approximation; it is the default.
	ModeEquirect Mode = "equirect"
	// ModeMercator projects through EPSG 3857 before scaling.
	ModeMercator Mode = "mercator"
)

// mercatorExtent is the half-width of the EPSG 3857 plane in metres.
const mercatorExtent = 20037508.342789244

// OffFrame is the out-of-frame point unresolvable nodes map to in legacy
// mode.
var OffFrame = geom.XY{X: -10, Y: -10}

// aliases are the documented development keys resolving to a fixed city
// (Amsterdam). Kept as an explicit table, not per-alias branches.
var aliases = map[string]core.LatLng{
	"dev":    {Lat: 52.3676, Lng: 4.9041},
	"local":  {Lat: 52.3676, Lng: 4.9041},
	"laptop": {Lat: 52.3676, Lng: 4.9041},
}

// Projector converts nodes to drawing-surface points.
//
// Legacy restores the compatibility behavior where an unknown location
// projects off-frame rather than being rejected; the default is to reject
// and let callers apply the skip-invalid-node policy.
type Projector struct {
	Mode   Mode
	Legacy bool
}

// Resolve turns any node variant into a geographic coordinate.
func (p Projector) Resolve(node core.Node) (core.LatLng, error) {
	switch node.Kind {
	case core.NodeNamed:
		key := util.NormalizeKey(node.Key)
		if c, ok := atlas.Lookup(key); ok {
			return c, nil
		}
		if c, ok := aliases[key]; ok {
			return c, nil
		}
		return core.LatLng{}, core.Validationf(core.ErrUnknownLocation, "key", "no location named %q", node.Key)
	case core.NodeCoord, core.NodeLabeled:
		if !node.Coord.Valid() {
			return core.LatLng{}, core.Validationf(core.ErrOutOfRange, "coord",
				"lat %v lng %v outside valid ranges", node.Coord.Lat, node.Coord.Lng)
		}
		return node.Coord, nil
	}
	return core.LatLng{}, core.Validationf(core.ErrMalformedNode, "kind", "unknown node kind %q", node.Kind)
}

// Project maps a node into the bounding box. X grows east, Y grows south
// (screen convention).
func (p Projector) Project(node core.Node, bbox core.BBox) (geom.XY, error) {
	c, err := p.Resolve(node)
	if err != nil {
		if p.Legacy && node.Kind == core.NodeNamed {
			return OffFrame, nil
		}
		return geom.XY{}, err
	}
	return p.projectLatLng(c, bbox), nil
}

func (p Projector) projectLatLng(c core.LatLng, bbox core.BBox) geom.XY {
	if p.Mode == ModeMercator {
		transform := wgs84.EPSG().Transform(4326, 3857)
		x, y, _ := transform(c.Lng, c.Lat, 0)
		return geom.XY{
			X: (x + mercatorExtent) / (2 * mercatorExtent) * bbox.Width,
			Y: (mercatorExtent - y) / (2 * mercatorExtent) * bbox.Height,
		}
	}
	return geom.XY{
		X: (c.Lng + 180) / 360 * bbox.Width,
		Y: (90 - c.Lat) / 180 * bbox.Height,
	}
}

// Unproject maps a drawing-surface point back to a geographic coordinate.
// It is the inverse of Project for in-range inputs.
func (p Projector) Unproject(pt geom.XY, bbox core.BBox) core.LatLng {
	if p.Mode == ModeMercator {
		x := pt.X/bbox.Width*2*mercatorExtent - mercatorExtent
		y := mercatorExtent - pt.Y/bbox.Height*2*mercatorExtent
		transform := wgs84.EPSG().Transform(3857, 4326)
		lng, lat, _ := transform(x, y, 0)
		return core.LatLng{Lat: lat, Lng: lng}
	}
	return core.LatLng{
		Lat: 90 - pt.Y/bbox.Height*180,
		Lng: pt.X/bbox.Width*360 - 180,
	}
}

// InFrame reports whether a projected point is inside the bounding box.
func InFrame(pt geom.XY, bbox core.BBox) bool {
	return pt.X >= 0 && pt.X <= bbox.Width && pt.Y >= 0 && pt.Y <= bbox.Height &&
		!math.IsNaN(pt.X) && !math.IsNaN(pt.Y)
}
