package sensorfield

import (
	"fmt"
	"math"
	"strings"

	"github.com/forceviz/forceviz/internal/core/colorgrad"
	"github.com/forceviz/forceviz/internal/core/events/bus"
	"github.com/forceviz/forceviz/internal/core/observability/log"
	"github.com/forceviz/forceviz/internal/core/physics"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// Field owns the ordered sensor collection and the arrow attached to each
// slot. It is not safe for concurrent use; a single goroutine drives it.
//
// Mutations mark the field dirty. The arrows catch up on the next Tick, so
// several edits in one frame cost one reconciliation pass. Changes that need
// no reconciliation (recolors, selection) still mark the frame as changed.
type Field struct {
	slots    []Slot
	ramp     colorgrad.Ramp
	selected int
	dirty    bool
	changed  bool

	policy         StalePolicy
	forceRange     Range
	thresholdRange Range

	logger log.Log
	events bus.EventBus
}

type Option func(*Field)

func WithRamp(r colorgrad.Ramp) Option {
	return func(f *Field) {
		if err := r.Validate(); err == nil {
			f.ramp = r
		}
	}
}

func WithLogger(l log.Log) Option {
	return func(f *Field) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithEventBus publishes field changes on b.
func WithEventBus(b bus.EventBus) Option {
	return func(f *Field) { f.events = b }
}

func WithStalePolicy(p StalePolicy) Option {
	return func(f *Field) { f.policy = p }
}

// WithSliderRanges bounds the bulk-force and threshold slider inputs.
func WithSliderRanges(force, threshold Range) Option {
	return func(f *Field) {
		f.forceRange = force
		f.thresholdRange = threshold
	}
}

func New(opts ...Option) *Field {
	f := &Field{
		ramp:     colorgrad.DefaultRamp(),
		selected: NoSelection,
		logger:   log.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With(log.String("component", "sensorfield"))
	return f
}

// AddSensor appends a sensor at the origin with no force and returns its
// index. No arrow exists for it until its force becomes non-zero.
func (f *Field) AddSensor() int {
	f.slots = append(f.slots, Slot{Sensor: Sensor{ID: uuid.New()}})
	index := len(f.slots) - 1

	f.logger.Debug("sensor added", log.Int("index", index), log.Int("len", len(f.slots)))
	f.publish(EventSensorAdded, SensorEvent{Index: index, Sensor: f.slots[index].Sensor})

	if f.selected == NoSelection {
		f.setSelected(index)
	}
	f.RequestReconcile()
	return index
}

// UpdateSensor overwrites the position and/or force of the sensor at index.
// A nil vector leaves that field as it is.
func (f *Field) UpdateSensor(index int, position, force *mgl64.Vec3) error {
	if !f.inRange(index) {
		f.logger.Warn("update ignored", log.Int("index", index), log.Error(ErrIndexOutOfRange))
		return fmt.Errorf("update sensor %d: %w", index, ErrIndexOutOfRange)
	}
	if position == nil && force == nil {
		return nil
	}

	s := &f.slots[index].Sensor
	if position != nil {
		if !finite(*position) {
			f.logger.Warn("position rejected", log.Int("index", index), log.Error(physics.ErrNonFinite))
		} else {
			s.Position = *position
		}
	}
	if force != nil {
		if !finite(*force) {
			f.logger.Warn("force rejected", log.Int("index", index), log.Error(physics.ErrNonFinite))
		} else {
			s.Force = *force
		}
	}

	f.publish(EventSensorUpdated, SensorEvent{Index: index, Sensor: *s})
	f.RequestReconcile()
	return nil
}

// EditSensor applies the text of the six edit fields. Position and force are
// parsed independently; a malformed vector is reported in the result and
// the sensor keeps its previous value for it.
func (f *Field) EditSensor(index int, in SensorInput) (EditResult, error) {
	if !f.inRange(index) {
		f.logger.Warn("edit ignored", log.Int("index", index), log.Error(ErrIndexOutOfRange))
		return EditResult{}, fmt.Errorf("edit sensor %d: %w", index, ErrIndexOutOfRange)
	}

	var (
		res             EditResult
		position, force *mgl64.Vec3
	)
	if p, err := physics.ParseVec3(in.PosX, in.PosY, in.PosZ); err != nil {
		res.PositionErr = err
		f.logger.Info("position not parsed",
			log.Int("index", index),
			log.Strings("input", []string{in.PosX, in.PosY, in.PosZ}),
			log.Error(err))
	} else {
		position = &p
	}
	if v, err := physics.ParseVec3(in.ForceX, in.ForceY, in.ForceZ); err != nil {
		res.ForceErr = err
		f.logger.Info("force not parsed",
			log.Int("index", index),
			log.Strings("input", []string{in.ForceX, in.ForceY, in.ForceZ}),
			log.Error(err))
	} else {
		force = &v
	}

	return res, f.UpdateSensor(index, position, force)
}

// EditSelected is EditSensor on the selected sensor.
func (f *Field) EditSelected(in SensorInput) (EditResult, error) {
	if f.selected == NoSelection {
		return EditResult{}, ErrNoSelection
	}
	return f.EditSensor(f.selected, in)
}

// RemoveSensor deletes the sensor at index together with its arrow. Later
// sensors shift down by one. The selection stays on the same index, moves to
// the new last sensor if it fell off the end, or clears when the field
// becomes empty.
func (f *Field) RemoveSensor(index int) error {
	if !f.inRange(index) {
		f.logger.Warn("remove ignored", log.Int("index", index), log.Error(ErrIndexOutOfRange))
		return fmt.Errorf("remove sensor %d: %w", index, ErrIndexOutOfRange)
	}

	removed := f.slots[index].Sensor
	copy(f.slots[index:], f.slots[index+1:])
	f.slots[len(f.slots)-1] = Slot{}
	f.slots = f.slots[:len(f.slots)-1]

	f.logger.Debug("sensor removed", log.Int("index", index), log.Int("len", len(f.slots)))
	f.publish(EventSensorRemoved, SensorEvent{Index: index, Sensor: removed})

	switch {
	case len(f.slots) == 0:
		f.setSelected(NoSelection)
	case f.selected >= len(f.slots):
		f.setSelected(len(f.slots) - 1)
	}
	f.RequestReconcile()
	return nil
}

// RemoveSelected removes the selected sensor.
func (f *Field) RemoveSelected() error {
	if f.selected == NoSelection {
		return ErrNoSelection
	}
	return f.RemoveSensor(f.selected)
}

// SetAllForces gives every sensor the same force reading.
func (f *Field) SetAllForces(force mgl64.Vec3) {
	if !finite(force) {
		f.logger.Warn("bulk force rejected", log.Error(physics.ErrNonFinite))
		return
	}
	for i := range f.slots {
		f.slots[i].Sensor.Force = force
	}
	f.logger.Debug("forces set", log.Int("len", len(f.slots)), log.String("force", physics.FormatVec3(force)))
	f.publish(EventForcesSet, force)
	f.RequestReconcile()
}

// ApplyForceSliders clamps each slider value to the force range and sets it
// on every sensor. It returns the force that was applied.
func (f *Field) ApplyForceSliders(x, y, z float64) mgl64.Vec3 {
	force := mgl64.Vec3{f.forceRange.Clamp(x), f.forceRange.Clamp(y), f.forceRange.Clamp(z)}
	f.SetAllForces(force)
	return force
}

// RequestReconcile marks the arrows out of date.
func (f *Field) RequestReconcile() {
	f.dirty = true
}

// Pending reports whether a reconciliation has been requested but not run.
func (f *Field) Pending() bool {
	return f.dirty
}

// Tick runs a pending reconciliation and reports whether the visible state
// changed since the previous Tick. Call it once per frame.
func (f *Field) Tick() bool {
	if f.dirty {
		f.Reconcile()
	}
	changed := f.changed
	f.changed = false
	return changed
}

// Reconcile brings every arrow in line with its sensor now.
func (f *Field) Reconcile() Stats {
	slots, stats := Reconcile(f.slots, f.ramp, f.policy)
	f.slots = slots
	f.dirty = false
	f.changed = true

	f.logger.Debug("field reconciled",
		log.Int("len", len(f.slots)),
		log.Int("created", stats.Created),
		log.Int("updated", stats.Updated),
		log.Int("skipped", stats.Skipped))
	f.publish(EventFieldReconciled, ReconciledEvent{Stats: stats, Len: len(f.slots)})
	return stats
}

// SetLowForceColor replaces the low end of the ramp and recolors arrows in place.
func (f *Field) SetLowForceColor(c colorgrad.RGB) {
	f.ramp.Low = c.Clamped()
	f.recolor()
}

// SetHighForceColor replaces the high end of the ramp and recolors arrows in place.
func (f *Field) SetHighForceColor(c colorgrad.RGB) {
	f.ramp.High = c.Clamped()
	f.recolor()
}

// SetAlpha sets the arrow opacity, clamped to [0,1], and recolors arrows in place.
func (f *Field) SetAlpha(a float64) {
	if math.IsNaN(a) {
		f.logger.Warn("alpha rejected", log.Error(colorgrad.ErrInvalidAlpha))
		return
	}
	f.ramp.Alpha = math.Max(0, math.Min(1, a))
	f.recolor()
}

// SetColorThreshold sets the magnitude at which arrows reach the high color.
// Values that are not positive and finite are ignored.
func (f *Field) SetColorThreshold(t float64) error {
	if !colorgrad.ValidThreshold(t) {
		f.logger.Warn("threshold rejected", log.Float64("threshold", t), log.Error(colorgrad.ErrInvalidThreshold))
		return fmt.Errorf("set threshold %v: %w", t, colorgrad.ErrInvalidThreshold)
	}
	f.ramp.Threshold = t
	f.publish(EventRampChanged, RampEvent{Ramp: f.ramp})
	f.RequestReconcile()
	return nil
}

// SetRamp replaces the whole ramp. Arrows are recolored in place; a changed
// threshold also requests a reconciliation. An invalid ramp changes nothing.
func (f *Field) SetRamp(r colorgrad.Ramp) error {
	if err := r.Validate(); err != nil {
		f.logger.Warn("ramp rejected", log.Error(err))
		return fmt.Errorf("set ramp: %w", err)
	}
	r.Low, r.High = r.Low.Clamped(), r.High.Clamped()
	thresholdChanged := r.Threshold != f.ramp.Threshold
	f.ramp = r
	f.recolor()
	if thresholdChanged {
		f.RequestReconcile()
	}
	return nil
}

// ApplyThresholdSlider clamps t to the threshold range before setting it.
func (f *Field) ApplyThresholdSlider(t float64) error {
	return f.SetColorThreshold(f.thresholdRange.Clamp(t))
}

func (f *Field) recolor() {
	f.slots = Recolor(f.slots, f.ramp)
	f.changed = true
	f.publish(EventRampChanged, RampEvent{Ramp: f.ramp})
}

// Select makes index the selected sensor. NoSelection clears it.
func (f *Field) Select(index int) error {
	if index != NoSelection && !f.inRange(index) {
		return fmt.Errorf("select sensor %d: %w", index, ErrIndexOutOfRange)
	}
	f.setSelected(index)
	return nil
}

func (f *Field) setSelected(index int) {
	if f.selected == index {
		return
	}
	f.selected = index
	f.changed = true
	f.publish(EventSelectionChanged, SelectionEvent{Index: index})
}

// Selected returns the selected index or NoSelection.
func (f *Field) Selected() int {
	return f.selected
}

// Options returns the selector labels, "Sensor 0" through "Sensor n-1".
func (f *Field) Options() []string {
	opts := make([]string, len(f.slots))
	for i := range f.slots {
		opts[i] = fmt.Sprintf("Sensor %d", i)
	}
	return opts
}

// SelectedFields renders the selected sensor into the six edit fields. All
// fields are empty when nothing is selected.
func (f *Field) SelectedFields() SensorInput {
	if !f.inRange(f.selected) {
		return SensorInput{}
	}
	s := f.slots[f.selected].Sensor
	return SensorInput{
		PosX:   physics.FormatComponent(s.Position[0]),
		PosY:   physics.FormatComponent(s.Position[1]),
		PosZ:   physics.FormatComponent(s.Position[2]),
		ForceX: physics.FormatComponent(s.Force[0]),
		ForceY: physics.FormatComponent(s.Force[1]),
		ForceZ: physics.FormatComponent(s.Force[2]),
	}
}

// Listing renders one line per sensor:
//
//	Sensor 0	Pos:(0, 0, 0) Force:(3, 4, 0)
func (f *Field) Listing() string {
	var b strings.Builder
	for i, slot := range f.slots {
		fmt.Fprintf(&b, "Sensor %d\tPos:(%s) Force:(%s)\n",
			i, physics.FormatVec3(slot.Sensor.Position), physics.FormatVec3(slot.Sensor.Force))
	}
	return b.String()
}

func (f *Field) Len() int {
	return len(f.slots)
}

func (f *Field) Ramp() colorgrad.Ramp {
	return f.ramp
}

func (f *Field) StalePolicy() StalePolicy {
	return f.policy
}

// Sensor returns a copy of the sensor at index.
func (f *Field) Sensor(index int) (Sensor, bool) {
	if !f.inRange(index) {
		return Sensor{}, false
	}
	return f.slots[index].Sensor, true
}

// Sensors returns a copy of the sensors in order.
func (f *Field) Sensors() []Sensor {
	out := make([]Sensor, len(f.slots))
	for i, slot := range f.slots {
		out[i] = slot.Sensor
	}
	return out
}

// Arrows returns a copy of the arrow slots, index-aligned with Sensors. A
// slot without an arrow is nil.
func (f *Field) Arrows() []*Arrow {
	out := make([]*Arrow, len(f.slots))
	for i, slot := range f.slots {
		if slot.Arrow != nil {
			a := *slot.Arrow
			out[i] = &a
		}
	}
	return out
}

// Snapshot copies the whole field state.
func (f *Field) Snapshot() Snapshot {
	slots := make([]Slot, len(f.slots))
	for i, slot := range f.slots {
		slots[i] = slot.clone()
	}
	return Snapshot{
		Slots:    slots,
		Ramp:     f.ramp,
		Selected: f.selected,
		Pending:  f.dirty,
	}
}

func (f *Field) inRange(index int) bool {
	return index >= 0 && index < len(f.slots)
}

func (f *Field) publish(kind string, data any) {
	if f.events == nil {
		return
	}
	if err := f.events.Publish(bus.NewEvent(kind, eventSource, data)); err != nil {
		f.logger.Warn("event handler failed", log.String("kind", kind), log.Error(err))
	}
}

func finite(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
