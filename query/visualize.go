package query

import (
	"fmt"
	"sort"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/urbanfabric/bizgraph/schema"
)

// Feature is one mappable result entity: either a WKT geometry or a point.
type Feature struct {
	DisplayName string   `json:"display_name"`
	WKT         string   `json:"wkt,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
}

// MapLayer groups one label's features.
type MapLayer struct {
	Label    string    `json:"label"`
	Features []Feature `json:"features"`
}

// MapSpec describes the map a client should render for a result set.
type MapSpec struct {
	// Center is the mean of the feature centroids, longitude/latitude.
	Center [2]float64 `json:"center"`

	Layers []MapLayer `json:"layers"`
}

// SelectVisualization decides whether a result set warrants a map and builds
// its spec: geometry-bearing nodes grouped into one layer per label. Returns
// nil for scalar-only results.
func SelectVisualization(reg *schema.Registry, result *Result) *MapSpec {
	if result == nil {
		return nil
	}

	layersByLabel := map[string][]Feature{}
	var sumX, sumY float64
	var count int

	for _, node := range result.Nodes {
		for _, label := range node.Labels {
			_, layerSpec, ok := reg.SpatialLayerFor(label)
			if !ok {
				continue
			}
			feature, center, ok := buildFeature(reg, label, layerSpec, node.Properties)
			if !ok {
				continue
			}
			layersByLabel[label] = append(layersByLabel[label], feature)
			sumX += center[0]
			sumY += center[1]
			count++
			break
		}
	}

	if count == 0 {
		return nil
	}

	labels := make([]string, 0, len(layersByLabel))
	for label := range layersByLabel {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	spec := &MapSpec{Center: [2]float64{sumX / float64(count), sumY / float64(count)}}
	for _, label := range labels {
		spec.Layers = append(spec.Layers, MapLayer{Label: label, Features: layersByLabel[label]})
	}
	return spec
}

func buildFeature(reg *schema.Registry, label string, layerSpec schema.SpatialLayerSpec, props map[string]any) (Feature, [2]float64, bool) {
	feature := Feature{DisplayName: displayName(reg, label, props)}

	switch layerSpec.LayerClass {
	case schema.LayerWKT:
		wkt, ok := props[layerSpec.GeometryProperty].(string)
		if !ok || wkt == "" {
			return Feature{}, [2]float64{}, false
		}
		g, err := geom.UnmarshalWKT(wkt)
		if err != nil {
			return Feature{}, [2]float64{}, false
		}
		feature.WKT = wkt
		centroid, ok := g.Centroid().XY()
		if !ok {
			return Feature{}, [2]float64{}, false
		}
		return feature, [2]float64{centroid.X, centroid.Y}, true

	case schema.LayerPoint:
		lat, latOK := asFloat(props["latitude"])
		lon, lonOK := asFloat(props["longitude"])
		if !latOK || !lonOK {
			return Feature{}, [2]float64{}, false
		}
		feature.Latitude = &lat
		feature.Longitude = &lon
		return feature, [2]float64{lon, lat}, true
	}
	return Feature{}, [2]float64{}, false
}

// displayName prefers the label's unique key value, then any name-like
// property.
func displayName(reg *schema.Registry, label string, props map[string]any) string {
	if key, ok := reg.UniqueKey(label); ok {
		if v, present := props[key]; present {
			return fmt.Sprintf("%v", v)
		}
	}
	for _, candidate := range []string{"name", "business_name", "city_name"} {
		if v, present := props[candidate]; present {
			return fmt.Sprintf("%v", v)
		}
	}
	return label
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
