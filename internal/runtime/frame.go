package runtime

import (
	"math"
	"time"

	"github.com/roach88/luma/internal/ir"
)

// Marker is one detected marker: its program id and its four corners in
// clockwise order starting top-left.
type Marker struct {
	ID      int         `json:"id" yaml:"id"`
	Corners [4]ir.Point `json:"corners" yaml:"corners"`
}

// Width is the length of the top edge.
func (m Marker) Width() float64 {
	return distance(m.Corners[0], m.Corners[1])
}

// Height is the length of the left edge.
func (m Marker) Height() float64 {
	return distance(m.Corners[0], m.Corners[3])
}

// Frame is one camera frame as delivered by a Source.
type Frame struct {
	Seq     int64
	Time    time.Time
	Markers []Marker

	// Appearance is the frame image payload, if the source has one. It is
	// published to programs through a frame-lifetime reference.
	Appearance any
}

func distance(a, b ir.Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// moved reports whether any corner moved by more than delta on either axis.
func moved(prev, cur [4]ir.Point, delta float64) bool {
	for i := range prev {
		if math.Abs(prev[i].X-cur[i].X) > delta || math.Abs(prev[i].Y-cur[i].Y) > delta {
			return true
		}
	}
	return false
}
