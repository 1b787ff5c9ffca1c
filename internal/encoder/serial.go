package encoder

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"
)

// SerialSource supplies the 32-bit volume serial written into the VBR.
type SerialSource interface {
	Serial() uint32
}

// SerialFunc adapts a function to SerialSource.
type SerialFunc func() uint32

func (f SerialFunc) Serial() uint32 { return f() }

// ClockSerial derives the serial from wall-clock seconds. Now defaults to
// time.Now.
type ClockSerial struct {
	Now func() time.Time
}

func (c ClockSerial) Serial() uint32 {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return uint32(now().Unix())
}

// FixedSerial always returns the same value, for reproducible images.
type FixedSerial uint32

func (f FixedSerial) Serial() uint32 { return uint32(f) }

// RandomSerial takes the serial from a fresh random UUID.
type RandomSerial struct{}

func (RandomSerial) Serial() uint32 {
	id := uuid.New()
	return binary.LittleEndian.Uint32(id[:4])
}
