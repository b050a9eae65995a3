package guidance

import (
	"fmt"
	"strconv"
)

// unknownText is how an unresolved coordinate component is rendered.
const unknownText = "Unknown"

// Coordinate is a resolved position or the explicit Unknown value.
// It is immutable once returned by a location provider.
type Coordinate struct {
	// Latitude in decimal degrees, meaningful only when Known is true.
	Latitude float64
	// Longitude in decimal degrees, meaningful only when Known is true.
	Longitude float64
	// Known reports whether a fix was obtained.
	Known bool
}

// NewCoordinate returns a known coordinate.
func NewCoordinate(latitude, longitude float64) Coordinate {
	return Coordinate{
		Latitude:  latitude,
		Longitude: longitude,
		Known:     true,
	}
}

// Unknown returns the coordinate used when no fix could be obtained.
func Unknown() Coordinate {
	return Coordinate{}
}

// LatitudeText renders the latitude or "Unknown".
func (c Coordinate) LatitudeText() string {
	if !c.Known {
		return unknownText
	}

	return strconv.FormatFloat(c.Latitude, 'f', 6, 64)
}

// LongitudeText renders the longitude or "Unknown".
func (c Coordinate) LongitudeText() string {
	if !c.Known {
		return unknownText
	}

	return strconv.FormatFloat(c.Longitude, 'f', 6, 64)
}

// String renders "lat, lon" or "Unknown".
func (c Coordinate) String() string {
	if !c.Known {
		return unknownText
	}

	return c.LatitudeText() + ", " + c.LongitudeText()
}

// MapsURL returns a link that opens the coordinate on a map.
func (c Coordinate) MapsURL() string {
	return fmt.Sprintf("https://www.google.com/maps?q=%s,%s", c.LatitudeText(), c.LongitudeText())
}
