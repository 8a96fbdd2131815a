package store

import (
	"database/sql/driver"
	"fmt"
	"math"

	sqlite "modernc.org/sqlite"

	"github.com/hazyhaar/docsvault/embedder"
)

// init registers a deterministic SQL scalar function computing L2
// (Euclidean) distance between two little-endian float32 BLOBs, the
// brute-force vector search primitive §4.6.3's vector branch runs over.
// Grounded on theRebelliousNerd-codenerd's vector_distance_cos registration
// pattern, adapted from cosine to L2 distance per this package's documented rules.
func init() {
	_ = sqlite.RegisterDeterministicScalarFunction("vector_distance_l2", 2, vectorDistanceL2)
}

func vectorDistanceL2(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("vector_distance_l2: expects 2 arguments")
	}
	a, err := decodeVectorArg(args[0])
	if err != nil {
		return nil, err
	}
	b, err := decodeVectorArg(args[1])
	if err != nil {
		return nil, err
	}
	if len(a) != len(b) {
		return nil, fmt.Errorf("vector_distance_l2: dimension mismatch %d vs %d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

func decodeVectorArg(v driver.Value) ([]float32, error) {
	switch x := v.(type) {
	case []byte:
		if len(x)%4 != 0 {
			return nil, fmt.Errorf("vector_distance_l2: blob length %d not a multiple of 4", len(x))
		}
		return embedder.Deserialize(x), nil
	case string:
		return embedder.Deserialize([]byte(x)), nil
	default:
		return nil, fmt.Errorf("vector_distance_l2: unsupported argument type %T", v)
	}
}
