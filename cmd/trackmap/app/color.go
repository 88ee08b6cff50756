package app

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

const (
	hueStart = 236.0 // lowest altitude
	hueEnd   = 0.0   // highest altitude

	defaultColorMapSize = 256
)

// ColorMapper maps relative altitude to a blue to red ramp.
type ColorMapper struct {
	colorMap     []color.Color // Pre-computed colors
	altitudeMin  float64
	altitudeSpan float64
}

func NewColorMapper(altitudeMin, altitudeMax float64) *ColorMapper {
	cm := &ColorMapper{
		colorMap:     make([]color.Color, defaultColorMapSize),
		altitudeMin:  altitudeMin,
		altitudeSpan: altitudeMax - altitudeMin,
	}

	for i := range cm.colorMap {
		normalized := float64(i) / float64(defaultColorMapSize-1)
		hue := hueStart - normalized*(hueStart-hueEnd)
		cm.colorMap[i] = colorful.Hsv(hue, 1, 0.90).Clamped()
	}
	return cm
}

// Color returns the ramp color for altitude. A flat track is drawn with the
// lowest color.
func (cm *ColorMapper) Color(altitude float64) color.Color {
	if cm.altitudeSpan <= 0 || math.IsNaN(altitude) {
		return cm.colorMap[0]
	}

	normalized := (altitude - cm.altitudeMin) / cm.altitudeSpan
	index := int(math.Round(normalized * float64(len(cm.colorMap)-1)))
	index = max(0, min(index, len(cm.colorMap)-1))
	return cm.colorMap[index]
}
