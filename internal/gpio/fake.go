package gpio

import "errors"

// FakeLine is a test double that returns scripted levels on Read and records
// levels driven by Write.
type FakeLine struct {
	// Samples contains scripted physical levels to return from Read.
	// Each call to Read() consumes the next sample; the last sample repeats.
	Samples []bool

	// index tracks current position in Samples
	index int

	// Writes records every level driven by Write, in order.
	Writes []bool

	// Level is the most recently written level.
	Level bool

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error

	// WriteError, if set, will be returned by Write()
	WriteError error
}

// NewFakeLine creates a FakeLine with the given scripted read samples.
func NewFakeLine(samples ...bool) *FakeLine {
	return &FakeLine{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeLine) Read() (bool, error) {
	if f.ReadError != nil {
		return false, f.ReadError
	}

	if len(f.Samples) == 0 {
		return false, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	return sample, nil
}

// Write records the driven level.
func (f *FakeLine) Write(level bool) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Writes = append(f.Writes, level)
	f.Level = level
	return nil
}

// Close marks the line as closed.
func (f *FakeLine) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the line to the beginning of samples and clears writes.
func (f *FakeLine) Reset() {
	f.index = 0
	f.Writes = nil
	f.Level = false
	f.Closed = false
}
