package embedder

import (
	"encoding/binary"
	"math"
)

// Serialize converts a float32 slice to little-endian bytes, the wire
// format shared with package store for padded embedding BLOB columns.
func Serialize(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// Deserialize converts little-endian bytes back to a float32 slice.
func Deserialize(blob []byte) []float32 {
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec
}

// Pad returns vec zero-padded to exactly dim components. If vec is longer
// than dim, the components past dim are dropped — callers must reject
// oversized vectors with docerr.ErrDimensionMismatch before calling Pad.
func Pad(vec []float32, dim int) []float32 {
	if len(vec) == dim {
		return vec
	}
	out := make([]float32, dim)
	copy(out, vec)
	return out
}
