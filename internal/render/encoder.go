package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/forceviz/forceviz/pkg/generic"
)

// Encoder serializes frames and remembers the hash of the last one, so
// callers can skip broadcasting a frame that did not change.
type Encoder struct {
	mu      sync.Mutex
	buffers *generic.Pool[*bytes.Buffer]
	last    uint64
	primed  bool
}

func NewEncoder() *Encoder {
	return &Encoder{
		buffers: generic.NewPool(
			func() *bytes.Buffer { return bytes.NewBuffer(make([]byte, 0, 4096)) },
			generic.WithReset(func(b *bytes.Buffer) { b.Reset() }),
		),
	}
}

// Encode returns the JSON of frame and whether it differs from the previous
// frame passed to Encode.
func (e *Encoder) Encode(frame FrameJSON) ([]byte, bool, error) {
	buf := e.buffers.Get()
	defer e.buffers.Put(buf)

	if err := json.NewEncoder(buf).Encode(frame); err != nil {
		return nil, false, fmt.Errorf("encode frame: %w", err)
	}
	data := bytes.TrimRight(buf.Bytes(), "\n")
	sum := xxhash.Sum64(data)

	e.mu.Lock()
	changed := !e.primed || sum != e.last
	e.last, e.primed = sum, true
	e.mu.Unlock()

	out := make([]byte, len(data))
	copy(out, data)
	return out, changed, nil
}

// Hash returns the hash of the last encoded frame.
func (e *Encoder) Hash() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

func optionLabel(i int) string {
	return "Sensor " + strconv.Itoa(i)
}
