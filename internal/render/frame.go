package render

import (
	"github.com/forceviz/forceviz/internal/core/colorgrad"
	"github.com/forceviz/forceviz/internal/core/physics"
	"github.com/forceviz/forceviz/internal/core/sensorfield"
	"github.com/go-gl/mathgl/mgl64"
)

// FrameJSON is the view model sent to browser clients.
type FrameJSON struct {
	Sensors        []SensorJSON `json:"sensors"`
	Selected       int          `json:"selected"`
	SelectedFields FieldsJSON   `json:"selected_fields"`
	Options        []string     `json:"options"`
	Ramp           RampJSON     `json:"ramp"`
}

// FieldsJSON is the text of the six edit fields. It is also the request body
// for editing a sensor.
type FieldsJSON struct {
	PosX   string `json:"pos_x"`
	PosY   string `json:"pos_y"`
	PosZ   string `json:"pos_z"`
	ForceX string `json:"force_x"`
	ForceY string `json:"force_y"`
	ForceZ string `json:"force_z"`
}

// Input converts the fields to a sensorfield edit.
func (f FieldsJSON) Input() sensorfield.SensorInput {
	return sensorfield.SensorInput(f)
}

type SensorJSON struct {
	Index    int        `json:"index"`
	ID       string     `json:"id"`
	Position [3]float64 `json:"position"`
	Force    [3]float64 `json:"force"`
	HasArrow bool       `json:"has_arrow"`
	Arrow    *ArrowJSON `json:"arrow,omitempty"`
}

// ArrowJSON carries the arrow transform. Rotation is a unit quaternion in
// w, x, y, z order.
type ArrowJSON struct {
	Position  [3]float64 `json:"position"`
	Scale     float64    `json:"scale"`
	Forward   [3]float64 `json:"forward"`
	Rotation  [4]float64 `json:"rotation"`
	Magnitude float64    `json:"magnitude"`
	Color     string     `json:"color"`
	Alpha     float64    `json:"alpha"`
	Hidden    bool       `json:"hidden"`
}

type RampJSON struct {
	Low       string  `json:"low"`
	High      string  `json:"high"`
	Alpha     float64 `json:"alpha"`
	Threshold float64 `json:"threshold"`
}

// NewFrame builds the view model of a field snapshot.
func NewFrame(s sensorfield.Snapshot) FrameJSON {
	frame := FrameJSON{
		Sensors:  make([]SensorJSON, len(s.Slots)),
		Selected: s.Selected,
		Options:  make([]string, len(s.Slots)),
		Ramp:     NewRamp(s.Ramp),
	}
	if s.Selected >= 0 && s.Selected < len(s.Slots) {
		sensor := s.Slots[s.Selected].Sensor
		frame.SelectedFields = FieldsJSON{
			PosX:   physics.FormatComponent(sensor.Position[0]),
			PosY:   physics.FormatComponent(sensor.Position[1]),
			PosZ:   physics.FormatComponent(sensor.Position[2]),
			ForceX: physics.FormatComponent(sensor.Force[0]),
			ForceY: physics.FormatComponent(sensor.Force[1]),
			ForceZ: physics.FormatComponent(sensor.Force[2]),
		}
	}
	for i, slot := range s.Slots {
		frame.Options[i] = optionLabel(i)
		frame.Sensors[i] = SensorJSON{
			Index:    i,
			ID:       slot.Sensor.ID.String(),
			Position: vec3(slot.Sensor.Position),
			Force:    vec3(slot.Sensor.Force),
			HasArrow: slot.Sensor.HasArrow,
		}
		if a := slot.Arrow; a != nil {
			q := a.Transform.Rotation
			frame.Sensors[i].Arrow = &ArrowJSON{
				Position:  vec3(a.Transform.Position),
				Scale:     a.Transform.Scale,
				Forward:   vec3(a.Transform.Forward),
				Rotation:  [4]float64{q.W, q.V[0], q.V[1], q.V[2]},
				Magnitude: a.Magnitude,
				Color:     colorgrad.RGBToHex(a.Color.RGB()),
				Alpha:     a.Color.A,
				Hidden:    a.Hidden,
			}
		}
	}
	return frame
}

func NewRamp(r colorgrad.Ramp) RampJSON {
	return RampJSON{
		Low:       colorgrad.RGBToHex(r.Low),
		High:      colorgrad.RGBToHex(r.High),
		Alpha:     r.Alpha,
		Threshold: r.Threshold,
	}
}

func vec3(v mgl64.Vec3) [3]float64 {
	return [3]float64{v[0], v[1], v[2]}
}
