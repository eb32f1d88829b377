// Package render turns trips into GeoJSON for the API and for event media.
package render

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"

	"github.com/jengzang/tripwatch/internal/models"
	"github.com/jengzang/tripwatch/internal/segmentation"
)

// LineString converts trip pings to an orb line in lon/lat order
func LineString(trip segmentation.Trip) orb.LineString {
	ls := make(orb.LineString, 0, trip.Len())
	for _, p := range trip.Pings {
		ls = append(ls, orb.Point{p.Longitude, p.Latitude})
	}
	return ls
}

// TripFeature renders a trip as a LineString feature with a bbox.
// A trip with a single ping is rendered as a Point.
func TripFeature(trip segmentation.Trip) (*geojson.Feature, error) {
	if trip.Len() == 0 {
		return nil, fmt.Errorf("cannot render an empty trip")
	}

	ls := LineString(trip)
	var geometry orb.Geometry = ls
	if len(ls) == 1 {
		geometry = ls[0]
	}

	feature := geojson.NewFeature(geometry)
	feature.BBox = geojson.NewBBox(ls.Bound())

	start, end := trip.Start(), trip.End()
	feature.Properties["start_ts"] = start.Timestamp
	feature.Properties["end_ts"] = end.Timestamp
	feature.Properties["duration_ms"] = trip.Duration().Milliseconds()
	feature.Properties["point_count"] = trip.Len()
	feature.Properties["distance_meters"] = trip.DistanceMeters()
	feature.Properties["origin_address"] = start.Address
	feature.Properties["dest_address"] = end.Address
	if len(ls) > 1 {
		centroid, _ := planar.CentroidArea(orb.MultiPoint(ls))
		feature.Properties["centroid"] = []float64{centroid.Lon(), centroid.Lat()}
	}

	return feature, nil
}

// RecordFeature renders a stored trip and tags it with its id and subject
func RecordFeature(record *models.Trip) (*geojson.Feature, error) {
	trip, err := record.Segmented()
	if err != nil {
		return nil, err
	}

	feature, err := TripFeature(trip)
	if err != nil {
		return nil, fmt.Errorf("failed to render trip %d: %w", record.ID, err)
	}
	feature.ID = record.ID
	feature.Properties["subject_id"] = record.SubjectID
	feature.Properties["trailing"] = record.Trailing
	return feature, nil
}

// TripCollection renders trips as a FeatureCollection
func TripCollection(trips []segmentation.Trip) (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()
	for i, trip := range trips {
		feature, err := TripFeature(trip)
		if err != nil {
			return nil, fmt.Errorf("failed to render trip %d: %w", i, err)
		}
		fc.Append(feature)
	}
	return fc, nil
}

// RecordCollection renders stored trips as a FeatureCollection
func RecordCollection(records []models.Trip) (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()
	for i := range records {
		feature, err := RecordFeature(&records[i])
		if err != nil {
			return nil, err
		}
		fc.Append(feature)
	}
	return fc, nil
}

// Media renders a compact trip line for event payloads. The line is simplified
// with Douglas-Peucker at toleranceDegrees; zero keeps every ping.
func Media(trip segmentation.Trip, toleranceDegrees float64) ([]byte, error) {
	feature, err := TripFeature(trip)
	if err != nil {
		return nil, err
	}

	if ls, ok := feature.Geometry.(orb.LineString); ok && toleranceDegrees > 0 {
		feature.Geometry = simplify.DouglasPeucker(toleranceDegrees).Simplify(ls.Clone())
	}
	feature.Properties["path_length_meters"] = geo.Length(LineString(trip))

	return feature.MarshalJSON()
}
