package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/forceviz/forceviz/internal/core/colorgrad"
	"github.com/forceviz/forceviz/internal/core/sensorfield"
	"github.com/forceviz/forceviz/internal/engine"
	"github.com/forceviz/forceviz/internal/render"
)

const maxBodySize = 64 << 10

// StateResponse answers every mutating request. Error carries a change the
// core rejected; the frame shows the state after the request either way.
type StateResponse struct {
	Frame         render.FrameJSON `json:"frame"`
	Index         *int             `json:"index,omitempty"`
	Error         string           `json:"error,omitempty"`
	PositionError string           `json:"position_error,omitempty"`
	ForceError    string           `json:"force_error,omitempty"`
}

type (
	SelectRequest struct {
		Index int `json:"index"`
	}

	ForcesRequest struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
		Z float64 `json:"z"`
	}

	ValueRequest struct {
		Value float64 `json:"value"`
	}

	SVRequest struct {
		S float64 `json:"s"`
		V float64 `json:"v"`
	}

	PointerRequest struct {
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}

	HexRequest struct {
		Hex string `json:"hex"`
	}
)

// PickerJSON is the color picker state. Open is set while a selection started
// by /api/picker/open waits for confirm or cancel.
type PickerJSON struct {
	Hue    float64 `json:"hue"`
	S      float64 `json:"s"`
	V      float64 `json:"v"`
	Hex    string  `json:"hex"`
	Marker string  `json:"marker"`
	Open   bool    `json:"open"`
	Error  string  `json:"error,omitempty"`
}

func pickerJSON(st *engine.State) PickerJSON {
	hsv := st.Picker.HSV()
	return PickerJSON{
		Hue:    hsv.H,
		S:      hsv.S,
		V:      hsv.V,
		Hex:    st.Picker.Hex(),
		Marker: colorgrad.RGBToHex(st.Picker.MarkerColor()),
		Open:   st.Session.IsOpen(),
	}
}

func (s *Server) handleGetFrame(w http.ResponseWriter, r *http.Request) {
	frame, err := s.frame(r.Context())
	if err != nil {
		s.loopUnavailable(w, err)
		return
	}
	writeJSON(w, http.StatusOK, frame)
}

func (s *Server) handleListing(w http.ResponseWriter, r *http.Request) {
	var listing string
	if err := s.loop.Do(r.Context(), func(st *engine.State) {
		listing = st.Field.Listing()
	}); err != nil {
		s.loopUnavailable(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, listing)
}

func (s *Server) handleAddSensor(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(st *engine.State) StateResponse {
		index := st.Field.AddSensor()
		return StateResponse{Index: &index}
	})
}

func (s *Server) handleEditSensor(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	var req render.FieldsJSON
	if !decode(w, r, &req) {
		return
	}
	s.mutate(w, r, func(st *engine.State) StateResponse {
		res, err := st.Field.EditSensor(index, req.Input())
		resp := StateResponse{Index: &index}
		if err != nil {
			resp.Error = err.Error()
		}
		if res.PositionErr != nil {
			resp.PositionError = res.PositionErr.Error()
		}
		if res.ForceErr != nil {
			resp.ForceError = res.ForceErr.Error()
		}
		return resp
	})
}

func (s *Server) handleRemoveSensor(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	s.mutate(w, r, func(st *engine.State) StateResponse {
		return errorResponse(st.Field.RemoveSensor(index))
	})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if !decode(w, r, &req) {
		return
	}
	s.mutate(w, r, func(st *engine.State) StateResponse {
		return errorResponse(st.Field.Select(req.Index))
	})
}

func (s *Server) handleSetForces(w http.ResponseWriter, r *http.Request) {
	var req ForcesRequest
	if !decode(w, r, &req) {
		return
	}
	s.mutate(w, r, func(st *engine.State) StateResponse {
		st.Field.ApplyForceSliders(req.X, req.Y, req.Z)
		return StateResponse{}
	})
}

func (s *Server) handleThreshold(w http.ResponseWriter, r *http.Request) {
	var req ValueRequest
	if !decode(w, r, &req) {
		return
	}
	s.mutate(w, r, func(st *engine.State) StateResponse {
		return errorResponse(st.Field.ApplyThresholdSlider(req.Value))
	})
}

func (s *Server) handleAlpha(w http.ResponseWriter, r *http.Request) {
	var req ValueRequest
	if !decode(w, r, &req) {
		return
	}
	s.mutate(w, r, func(st *engine.State) StateResponse {
		st.Field.SetAlpha(req.Value)
		return StateResponse{}
	})
}

func (s *Server) handleGetPicker(w http.ResponseWriter, r *http.Request) {
	s.picker(w, r, func(*engine.State) error { return nil })
}

func (s *Server) handlePickerHue(w http.ResponseWriter, r *http.Request) {
	var req ValueRequest
	if !decode(w, r, &req) {
		return
	}
	s.picker(w, r, func(st *engine.State) error {
		st.Picker.SetHue(req.Value)
		return nil
	})
}

func (s *Server) handlePickerSV(w http.ResponseWriter, r *http.Request) {
	var req SVRequest
	if !decode(w, r, &req) {
		return
	}
	s.picker(w, r, func(st *engine.State) error {
		st.Picker.SetSV(req.S, req.V)
		return nil
	})
}

func (s *Server) handlePickerPointer(w http.ResponseWriter, r *http.Request) {
	var req PointerRequest
	if !decode(w, r, &req) {
		return
	}
	s.picker(w, r, func(st *engine.State) error {
		st.Picker.SetPointer(req.X, req.Y, req.Width, req.Height)
		return nil
	})
}

func (s *Server) handlePickerHex(w http.ResponseWriter, r *http.Request) {
	var req HexRequest
	if !decode(w, r, &req) {
		return
	}
	s.picker(w, r, func(st *engine.State) error {
		return st.Picker.SetHex(req.Hex)
	})
}

func (s *Server) handlePickerApply(w http.ResponseWriter, r *http.Request) {
	set, ok := rampEnd(w, r)
	if !ok {
		return
	}
	s.mutate(w, r, func(st *engine.State) StateResponse {
		set(st.Field, st.Picker.Color())
		return StateResponse{}
	})
}

// handlePickerOpen loads one ramp end into the picker and starts a selection.
// Picker edits preview into the selection until confirm writes the preview
// back to that end or cancel restores the color it had when opened.
func (s *Server) handlePickerOpen(w http.ResponseWriter, r *http.Request) {
	set, ok := rampEnd(w, r)
	if !ok {
		return
	}
	s.picker(w, r, func(st *engine.State) error {
		field := st.Field
		initial := field.Ramp().Low
		if r.PathValue("target") == "high" {
			initial = field.Ramp().High
		}
		st.Picker.SetColor(initial)
		st.Session.Open(initial, func(c colorgrad.RGB) { set(field, c) })
		return nil
	})
}

func (s *Server) handlePickerConfirm(w http.ResponseWriter, r *http.Request) {
	s.closeSession(w, r, (*colorgrad.Session).Confirm)
}

func (s *Server) handlePickerCancel(w http.ResponseWriter, r *http.Request) {
	s.closeSession(w, r, (*colorgrad.Session).Cancel)
}

func (s *Server) closeSession(w http.ResponseWriter, r *http.Request, finish func(*colorgrad.Session)) {
	s.mutate(w, r, func(st *engine.State) StateResponse {
		if !st.Session.IsOpen() {
			return errorResponse(ErrNoColorSession)
		}
		finish(st.Session)
		return StateResponse{}
	})
}

func rampEnd(w http.ResponseWriter, r *http.Request) (func(*sensorfield.Field, colorgrad.RGB), bool) {
	switch target := r.PathValue("target"); target {
	case "low":
		return (*sensorfield.Field).SetLowForceColor, true
	case "high":
		return (*sensorfield.Field).SetHighForceColor, true
	default:
		http.Error(w, fmt.Sprintf("unknown ramp end %q", target), http.StatusNotFound)
		return nil, false
	}
}

func (s *Server) picker(w http.ResponseWriter, r *http.Request, fn func(*engine.State) error) {
	var resp PickerJSON
	err := s.loop.Do(r.Context(), func(st *engine.State) {
		ferr := fn(st)
		st.Session.Preview(st.Picker.Color())
		resp = pickerJSON(st)
		if ferr != nil {
			resp.Error = ferr.Error()
		}
	})
	if err != nil {
		s.loopUnavailable(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func errorResponse(err error) StateResponse {
	if err == nil {
		return StateResponse{}
	}
	return StateResponse{Error: err.Error()}
}

func pathIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		http.Error(w, "invalid sensor index", http.StatusBadRequest)
		return 0, false
	}
	return index, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		http.Error(w, fmt.Sprintf("%v: %v", ErrInvalidMessage, err), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
