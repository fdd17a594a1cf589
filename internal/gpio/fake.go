package gpio

import "errors"

// FakeReader is a test double that returns scripted GPIO values.
type FakeReader struct {
	// Samples contains scripted (presence, disarm) values to return.
	// Each call to Read() consumes the next sample.
	Samples []Sample

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// Sample represents a single GPIO reading (already in logical form).
type Sample struct {
	Presence bool // true = PIR active
	Disarm   bool // true = button pressed
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples []Sample) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) Read() (bool, bool, error) {
	if f.ReadError != nil {
		return false, false, f.ReadError
	}

	if len(f.Samples) == 0 {
		return false, false, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	return sample.Presence, sample.Disarm, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the reader to the beginning of samples.
func (f *FakeReader) Reset() {
	f.index = 0
	f.Closed = false
}

// FakeOutputs records output changes instead of driving lines.
type FakeOutputs struct {
	Heating bool
	Alarm   bool

	// HeatingCalls and AlarmCalls record every requested level in order.
	HeatingCalls []bool
	AlarmCalls   []bool

	Closed bool

	// SetError, if set, will be returned by SetHeating and SetAlarm
	SetError error
}

// NewFakeOutputs creates FakeOutputs with everything off.
func NewFakeOutputs() *FakeOutputs {
	return &FakeOutputs{}
}

// SetHeating records the heating level.
func (f *FakeOutputs) SetHeating(on bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.Heating = on
	f.HeatingCalls = append(f.HeatingCalls, on)
	return nil
}

// SetAlarm records the alarm level.
func (f *FakeOutputs) SetAlarm(on bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.Alarm = on
	f.AlarmCalls = append(f.AlarmCalls, on)
	return nil
}

// Close turns everything off and marks the outputs as closed.
func (f *FakeOutputs) Close() error {
	f.Heating = false
	f.Alarm = false
	f.Closed = true
	return nil
}
