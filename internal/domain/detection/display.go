package detection

import "math"

const (
	MinZoom     = 0.5
	MaxZoom     = 2.0
	ZoomStep    = 0.1
	DefaultZoom = 1.0
)

// Display holds the image viewer controls.
type Display struct {
	Zoom    float64 `json:"zoom"`
	Overlay bool    `json:"overlay"`
}

// NewDisplay returns zoom 1.0 with the overlay visible.
func NewDisplay() Display {
	return Display{Zoom: DefaultZoom, Overlay: true}
}

func (d *Display) ZoomIn() {
	d.SetZoom(d.Zoom + ZoomStep)
}

func (d *Display) ZoomOut() {
	d.SetZoom(d.Zoom - ZoomStep)
}

// SetZoom clamps to [MinZoom, MaxZoom] and snaps to one decimal so repeated
// steps do not accumulate float drift.
func (d *Display) SetZoom(z float64) {
	if math.IsNaN(z) {
		z = DefaultZoom
	}
	z = math.Round(z*10) / 10
	if z < MinZoom {
		z = MinZoom
	}
	if z > MaxZoom {
		z = MaxZoom
	}
	d.Zoom = z
}
