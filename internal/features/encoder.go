package features

import "sync"

// UnknownPickupCode is returned for pickup points a frozen encoder has not seen.
const UnknownPickupCode = -1

// PickupEncoder assigns stable integer codes to pickup point labels in order of first appearance.
type PickupEncoder struct {
	mu     sync.Mutex
	codes  map[string]int
	frozen bool
}

func NewPickupEncoder() *PickupEncoder {
	return &PickupEncoder{codes: make(map[string]int)}
}

// Encode returns the code for pv, assigning the next one if the encoder is not frozen.
func (e *PickupEncoder) Encode(pv string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if code, ok := e.codes[pv]; ok {
		return code
	}
	if e.frozen {
		return UnknownPickupCode
	}
	code := len(e.codes)
	e.codes[pv] = code
	return code
}

// Lookup returns the code without assigning.
func (e *PickupEncoder) Lookup(pv string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if code, ok := e.codes[pv]; ok {
		return code
	}
	return UnknownPickupCode
}

// Freeze stops new assignments.
func (e *PickupEncoder) Freeze() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frozen = true
}

func (e *PickupEncoder) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.codes)
}
