package sensorfield

import "github.com/forceviz/forceviz/internal/core/colorgrad"

// Event kinds published on the field's event bus.
const (
	EventSensorAdded      = "sensor.added"
	EventSensorUpdated    = "sensor.updated"
	EventSensorRemoved    = "sensor.removed"
	EventForcesSet        = "forces.set"
	EventRampChanged      = "ramp.changed"
	EventSelectionChanged = "selection.changed"
	EventFieldReconciled  = "field.reconciled"
)

const eventSource = "sensorfield"

type (
	SensorEvent struct {
		Index  int
		Sensor Sensor
	}

	RampEvent struct {
		Ramp colorgrad.Ramp
	}

	SelectionEvent struct {
		Index int
	}

	ReconciledEvent struct {
		Stats Stats
		Len   int
	}
)
