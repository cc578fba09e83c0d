package colorgrad

// Session is a modal color selection. The caller opens it with a starting
// color and a callback. Confirm hands the previewed color to the callback.
// Cancel hands back the starting color.
type Session struct {
	open     bool
	initial  RGB
	preview  RGB
	onSelect func(RGB)
}

// Open starts a selection. An already open session is replaced without
// invoking its callback.
func (s *Session) Open(initial RGB, onSelect func(RGB)) {
	s.open = true
	s.initial = initial
	s.preview = initial
	s.onSelect = onSelect
}

// IsOpen reports whether a selection is in progress.
func (s *Session) IsOpen() bool { return s.open }

// Preview records the color currently shown. Ignored when closed.
func (s *Session) Preview(c RGB) {
	if s.open {
		s.preview = c
	}
}

// Current returns the previewed color.
func (s *Session) Current() RGB { return s.preview }

// Confirm closes the session and reports the previewed color.
func (s *Session) Confirm() {
	s.finish(s.preview)
}

// Cancel closes the session and reports the initial color.
func (s *Session) Cancel() {
	s.finish(s.initial)
}

func (s *Session) finish(c RGB) {
	if !s.open {
		return
	}
	s.open = false
	cb := s.onSelect
	s.onSelect = nil
	if cb != nil {
		cb(c)
	}
}
