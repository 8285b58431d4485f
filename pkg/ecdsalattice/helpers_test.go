package ecdsalattice

import (
	"context"
	"math/big"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

var testMessage = []byte("partially leaked nonces")

// generateTestDataset builds a reproducible dataset signed by a random key.
func generateTestDataset(t *testing.T, curveName string, count int, known KnownBits, seed int64) (*Dataset, *big.Int) {
	t.Helper()
	curve, err := LookupCurve(curveName)
	require.NoError(t, err)
	ds, d, err := GenerateDataset(GenerateOptions{
		Curve:   curve,
		Count:   count,
		Known:   known,
		Message: testMessage,
		Rand:    rand.New(rand.NewSource(seed)),
	})
	require.NoError(t, err)
	return ds, d
}

// recordingOracle wraps an oracle and counts the calls made to it.
type recordingOracle struct {
	inner   ReductionOracle
	err     error
	mu      sync.Mutex
	reduces int
	closest int
}

func (o *recordingOracle) Name() string { return "recording" }

func (o *recordingOracle) Reduce(ctx context.Context, basis [][]*big.Int, blockSize int) ([][]*big.Int, error) {
	o.mu.Lock()
	o.reduces++
	o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	if o.inner == nil {
		return basis, nil
	}
	return o.inner.Reduce(ctx, basis, blockSize)
}

func (o *recordingOracle) ClosestVector(ctx context.Context, basis [][]*big.Int, target []*big.Int) ([]*big.Int, error) {
	o.mu.Lock()
	o.closest++
	o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	if o.inner == nil {
		return target, nil
	}
	return o.inner.ClosestVector(ctx, basis, target)
}

func (o *recordingOracle) calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.reduces + o.closest
}

// stateRecorder collects the transitions reported by an attack.
type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) observe(_ int, s State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}
