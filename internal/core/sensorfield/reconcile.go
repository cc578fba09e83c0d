package sensorfield

import (
	"github.com/forceviz/forceviz/internal/core/colorgrad"
	"github.com/forceviz/forceviz/internal/core/physics"
)

// Stats counts what a reconciliation pass did.
type Stats struct {
	Created int
	Updated int
	Skipped int
	Hidden  int
}

// Reconcile derives arrows from sensor state. It does not modify slots; the
// returned slice holds copies.
//
// Sensors with zero force are skipped: no arrow is created for them, and an
// existing arrow is left as it was under StaleKeep or marked hidden under
// StaleHide. Every other sensor gets an arrow at its position, scaled by the
// force magnitude, pointing along the force and colored from the ramp.
func Reconcile(slots []Slot, ramp colorgrad.Ramp, policy StalePolicy) ([]Slot, Stats) {
	var stats Stats
	out := make([]Slot, len(slots))
	for i, slot := range slots {
		slot = slot.clone()
		sensor := slot.Sensor

		tr, ok := physics.ArrowTransform(sensor.Position, sensor.Force)
		if !ok {
			stats.Skipped++
			if policy == StaleHide && slot.Arrow != nil && !slot.Arrow.Hidden {
				slot.Arrow.Hidden = true
				stats.Hidden++
			}
			out[i] = slot
			continue
		}

		if slot.Arrow == nil {
			slot.Arrow = &Arrow{SensorID: sensor.ID}
			slot.Sensor.HasArrow = true
			stats.Created++
		} else {
			stats.Updated++
		}
		magnitude := tr.Scale
		slot.Arrow.Transform = tr
		slot.Arrow.Magnitude = magnitude
		slot.Arrow.Color = ramp.Color(magnitude)
		slot.Arrow.Hidden = false
		out[i] = slot
	}
	return out, stats
}

// Recolor re-derives every arrow color from its retained magnitude, leaving
// transforms untouched.
func Recolor(slots []Slot, ramp colorgrad.Ramp) []Slot {
	out := make([]Slot, len(slots))
	for i, slot := range slots {
		slot = slot.clone()
		if slot.Arrow != nil {
			slot.Arrow.Color = ramp.Color(slot.Arrow.Magnitude)
		}
		out[i] = slot
	}
	return out
}
