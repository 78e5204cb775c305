package sample

import (
	"fmt"

	"github.com/fieldrobotics/autocal/internal/camera"
)

// Configuration describes one calibration-capture phase: the camera and head
// pose the robot holds, the requested sample types and the base index of its
// slot range in the shared sample vector. A configuration does not own the
// samples it indexes.
type Configuration struct {
	Camera            camera.Camera
	HeadPan, HeadTilt float64
	Types             TypeMask
	IndexBase         int
}

// slotIndex returns the slot of a requested type: the base index plus the
// number of requested types preceding it in enumeration order. Asking for an
// unrequested type is a programming error.
func (c *Configuration) slotIndex(t Type) int {
	if !c.Types.Has(t) {
		panic(fmt.Sprintf("sample: type %v not requested by configuration", t))
	}
	index := c.IndexBase
	for x := Type(0); x < t; x++ {
		if c.Types.Has(x) {
			index++
		}
	}
	return index
}

// checkBounds panics when a slot index leaves the shared vector. A
// configuration whose slot range exceeds the vector is misconfigured and must
// fail fast rather than clip.
func checkBounds(slots []Sample, index int) {
	if index < 0 || index >= len(slots) {
		panic(fmt.Sprintf("sample: slot %d out of range (%d slots)", index, len(slots)))
	}
}

// NeedToRecord reports whether the configuration requests the given type and
// its slot is still empty.
func (c *Configuration) NeedToRecord(slots []Sample, t Type) bool {
	if !c.Types.Has(t) {
		return false
	}
	index := c.slotIndex(t)
	checkBounds(slots, index)
	return slots[index] == nil
}

// Record stores a sample into its slot. Recording an unrequested type, an
// out-of-range slot or an already-filled slot is an invariant violation and
// panics; a filled slot is only released by starting a new session.
func (c *Configuration) Record(slots []Sample, t Type, s Sample) {
	index := c.slotIndex(t)
	checkBounds(slots, index)
	if slots[index] != nil {
		panic(fmt.Sprintf("sample: slot %d (%v) already recorded", index, t))
	}
	slots[index] = s
}

// SamplesExist reports whether every slot the configuration requests is
// filled.
func (c *Configuration) SamplesExist(slots []Sample) bool {
	index := c.IndexBase
	for t := Type(0); t < NumTypes; t++ {
		if !c.Types.Has(t) {
			continue
		}
		checkBounds(slots, index)
		if slots[index] == nil {
			return false
		}
		index++
	}
	return true
}

// AllRecorded reports whether no requested type still needs recording.
func (c *Configuration) AllRecorded(slots []Sample) bool {
	for t := Type(0); t < NumTypes; t++ {
		if c.NeedToRecord(slots, t) {
			return false
		}
	}
	return true
}
