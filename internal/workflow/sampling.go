package workflow

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"time"
)

// Sampler draws one value uniformly distributed over [0, 100).
type Sampler interface {
	Draw() float64
}

// uniformSampler seeds a fresh source on every draw so that successive draws
// share no state and cannot repeat a fixed sequence across restarts.
type uniformSampler struct{}

// NewUniformSampler returns the production sampler used by the gate.
func NewUniformSampler() Sampler {
	return uniformSampler{}
}

func (uniformSampler) Draw() float64 {
	var buf [8]byte
	seed := time.Now().UnixNano()
	if _, err := crand.Read(buf[:]); err == nil {
		seed ^= int64(binary.LittleEndian.Uint64(buf[:]))
	}
	r := rand.New(rand.NewSource(seed))
	return r.Float64() * 100
}
