package playback

import (
	"math"
	"sync/atomic"
)

// atomicFloat32 stores a float32 as its bit pattern in an atomic uint32.
type atomicFloat32 struct {
	bits atomic.Uint32
}

func (af *atomicFloat32) Load() float32 {
	return math.Float32frombits(af.bits.Load())
}

func (af *atomicFloat32) Store(val float32) {
	af.bits.Store(math.Float32bits(val))
}
