package app

import (
	"math"
	"time"

	"github.com/roman-kulish/groundlink/internal/flight"
)

const earthRadius = 6_371_000.0 // meters

type TrackData struct {
	Points                       []flight.TrackPoint
	LatitudeMin, LatitudeMax     float64
	LongitudeMin, LongitudeMax   float64
	AltitudeMin, AltitudeMax     float64
	TimestampStart, TimestampEnd time.Time
	Distance                     float64 // Ground distance along the track in meters
}

func NewTrackData() *TrackData {
	return &TrackData{
		LatitudeMin:  math.MaxFloat64,
		LatitudeMax:  -math.MaxFloat64,
		LongitudeMin: math.MaxFloat64,
		LongitudeMax: -math.MaxFloat64,
		AltitudeMin:  math.MaxFloat64,
		AltitudeMax:  -math.MaxFloat64,
	}
}

func (t *TrackData) Update(p *flight.TrackPoint) {
	if n := len(t.Points); n > 0 {
		prev := t.Points[n-1]
		t.Distance += haversine(prev.Latitude, prev.Longitude, p.Latitude, p.Longitude)
	}
	t.Points = append(t.Points, *p)

	t.LatitudeMin = min(t.LatitudeMin, p.Latitude)
	t.LatitudeMax = max(t.LatitudeMax, p.Latitude)
	t.LongitudeMin = min(t.LongitudeMin, p.Longitude)
	t.LongitudeMax = max(t.LongitudeMax, p.Longitude)
	t.AltitudeMin = min(t.AltitudeMin, p.RelativeAltitude)
	t.AltitudeMax = max(t.AltitudeMax, p.RelativeAltitude)

	if t.TimestampStart.IsZero() || t.TimestampStart.After(p.Timestamp) {
		t.TimestampStart = p.Timestamp
	}
	if t.TimestampEnd.IsZero() || t.TimestampEnd.Before(p.Timestamp) {
		t.TimestampEnd = p.Timestamp
	}
}

func (t *TrackData) Empty() bool {
	return len(t.Points) == 0
}

func (t *TrackData) Duration() time.Duration {
	return t.TimestampEnd.Sub(t.TimestampStart)
}

// haversine returns the great-circle distance between two points in meters.
func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1, phi2 := lat1*math.Pi/180, lat2*math.Pi/180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) + math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadius * math.Asin(math.Sqrt(min(a, 1)))
}
