package ecdsalattice

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/mahdiidarabi/ecdsa-lattice/internal/lll"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minimumCount(t *testing.T, curve string, bits int) int {
	t.Helper()
	c, err := LookupCurve(curve)
	require.NoError(t, err)
	m, err := DefaultSampleEstimator().Estimate(c.Order().BitLen(), bits)
	require.NoError(t, err)
	return m
}

func TestAttack_Run_Secp256k1SixBits(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping 61-dimensional reduction in short mode")
	}
	known := KnownBits{Type: LSB, Bits: 6}
	ds, d := generateTestDataset(t, "secp256k1", minimumCount(t, "secp256k1", 6), known, 100)

	cfg := DefaultAttackConfig()
	cfg.MaxAttempts = 3
	res, err := NewAttack(lll.NewOracle(), cfg).Run(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, 0, d.Cmp(res.PrivateKey))
}

func TestAttack_Run_LSB(t *testing.T) {
	known := KnownBits{Type: LSB, Bits: 32}
	ds, d := generateTestDataset(t, "secp256k1", minimumCount(t, "secp256k1", 32), known, 101)

	rec := &stateRecorder{}
	cfg := DefaultAttackConfig()
	cfg.OnState = rec.observe
	res, err := NewAttack(lll.NewOracle(), cfg).Run(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, 0, d.Cmp(res.PrivateKey))
	assert.Equal(t, ShortestVector, res.Mode)
	assert.Len(t, res.Subset, 13)
	assert.True(t, VerifyKey(ds.Curve, res.PrivateKey, ds.PublicKey))

	require.NotEmpty(t, rec.states)
	assert.Equal(t, StateSizing, rec.states[0])
	assert.Equal(t, StateSuccess, rec.states[len(rec.states)-1])
	assert.Contains(t, rec.states, StateBuilding)
	assert.Contains(t, rec.states, StateReducing)
	assert.Contains(t, rec.states, StateVerifying)
	assert.NotContains(t, rec.states, StateExhausted)
}

func TestAttack_Run_MSB(t *testing.T) {
	known := KnownBits{Type: MSB, Bits: 32}
	ds, d := generateTestDataset(t, "secp256k1", minimumCount(t, "secp256k1", 32)+5, known, 102)

	cfg := DefaultAttackConfig()
	res, err := NewAttack(lll.NewOracle(), cfg).Run(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, 0, d.Cmp(res.PrivateKey))
}

func TestAttack_Run_ClosestVector(t *testing.T) {
	known := KnownBits{Type: LSB, Bits: 32}
	ds, d := generateTestDataset(t, "P-256", minimumCount(t, "P-256", 32), known, 103)

	oracle := &recordingOracle{inner: lll.NewOracle()}
	cfg := DefaultAttackConfig()
	cfg.Mode = ClosestVector
	res, err := NewAttack(oracle, cfg).Run(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, 0, d.Cmp(res.PrivateKey))
	assert.Equal(t, ClosestVector, res.Mode)
	assert.Positive(t, oracle.closest)
}

func TestAttack_Run_InfeasibleKnownBits(t *testing.T) {
	ds, _ := generateTestDataset(t, "secp256k1", 200, KnownBits{Type: LSB, Bits: 3}, 104)

	oracle := &recordingOracle{}
	rec := &stateRecorder{}
	cfg := DefaultAttackConfig()
	cfg.OnState = rec.observe
	_, err := NewAttack(oracle, cfg).Run(context.Background(), ds)
	require.ErrorIs(t, err, ErrInfeasible)
	assert.Zero(t, oracle.calls())
	assert.NotContains(t, rec.states, StateBuilding)
}

func TestAttack_Run_InfeasibleCount(t *testing.T) {
	known := KnownBits{Type: LSB, Bits: 6}
	ds, _ := generateTestDataset(t, "secp256k1", minimumCount(t, "secp256k1", 6)-1, known, 105)

	oracle := &recordingOracle{}
	_, err := NewAttack(oracle, DefaultAttackConfig()).Run(context.Background(), ds)
	require.ErrorIs(t, err, ErrInfeasible)
	assert.Zero(t, oracle.calls())
}

func TestAttack_Run_NoisyDataset(t *testing.T) {
	known := KnownBits{Type: LSB, Bits: 32}
	ds, d := generateTestDataset(t, "secp256k1", 38, known, 106)
	noise, _ := generateTestDataset(t, "secp256k1", 2, known, 107)
	// noise signatures come from another key and land in the middle
	sigs := append([]*Signature{}, ds.Signatures[:19]...)
	sigs = append(sigs, noise.Signatures...)
	ds.Signatures = append(sigs, ds.Signatures[19:]...)

	cfg := DefaultAttackConfig()
	cfg.MaxAttempts = 40
	cfg.Seed = 7
	res, err := NewAttack(lll.NewOracle(), cfg).Run(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, 0, d.Cmp(res.PrivateKey))
	assert.LessOrEqual(t, res.Attempts, 40)
}

func TestAttack_Run_Exhausted(t *testing.T) {
	known := KnownBits{Type: LSB, Bits: 32}
	ds, _ := generateTestDataset(t, "secp256k1", 20, known, 108)

	// an oracle that returns its input leaves nothing short to find
	oracle := &recordingOracle{}
	rec := &stateRecorder{}
	cfg := DefaultAttackConfig()
	cfg.MaxAttempts = 4
	cfg.Schedule = BKZSchedule()
	cfg.OnState = rec.observe
	_, err := NewAttack(oracle, cfg).Run(context.Background(), ds)
	require.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 4*len(BKZSchedule()), oracle.calls())
	assert.Contains(t, rec.states, StateRetrying)
	assert.Equal(t, StateExhausted, rec.states[len(rec.states)-1])
}

func TestAttack_Run_DegenerateSubsets(t *testing.T) {
	known := KnownBits{Type: LSB, Bits: 32}
	ds, _ := generateTestDataset(t, "secp256k1", 1, known, 109)
	for len(ds.Signatures) < minimumCount(t, "secp256k1", 32) {
		ds.Signatures = append(ds.Signatures, ds.Signatures[0])
	}

	oracle := &recordingOracle{}
	cfg := DefaultAttackConfig()
	cfg.MaxAttempts = 3
	_, err := NewAttack(oracle, cfg).Run(context.Background(), ds)
	require.ErrorIs(t, err, ErrExhausted)
	assert.Zero(t, oracle.calls())
}

func TestAttack_Run_OracleFailure(t *testing.T) {
	known := KnownBits{Type: LSB, Bits: 32}
	ds, _ := generateTestDataset(t, "secp256k1", 13, known, 110)

	boom := errors.New("back-end crashed")
	_, err := NewAttack(&recordingOracle{err: boom}, DefaultAttackConfig()).Run(context.Background(), ds)
	require.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, ErrExhausted))
}

func TestAttack_Run_Cancelled(t *testing.T) {
	known := KnownBits{Type: LSB, Bits: 32}
	ds, _ := generateTestDataset(t, "secp256k1", 13, known, 111)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewAttack(lll.NewOracle(), DefaultAttackConfig()).Run(ctx, ds)
	require.ErrorIs(t, err, context.Canceled)
}

func TestAttack_Run_ParallelWorkers(t *testing.T) {
	known := KnownBits{Type: LSB, Bits: 32}
	ds, d := generateTestDataset(t, "secp256k1", 20, known, 112)

	cfg := DefaultAttackConfig()
	cfg.Workers = 4
	cfg.MaxAttempts = 8
	res, err := NewAttack(lll.NewOracle(), cfg).Run(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, 0, d.Cmp(res.PrivateKey))
	assert.GreaterOrEqual(t, res.Attempts, 1)
	assert.LessOrEqual(t, res.Attempts, 8)
}

func TestAttack_Run_ParallelExhausted(t *testing.T) {
	known := KnownBits{Type: LSB, Bits: 32}
	ds, _ := generateTestDataset(t, "secp256k1", 20, known, 113)

	oracle := &recordingOracle{}
	cfg := DefaultAttackConfig()
	cfg.Workers = 3
	cfg.MaxAttempts = 7
	_, err := NewAttack(oracle, cfg).Run(context.Background(), ds)
	require.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 7, oracle.calls())
}

func TestAttack_Run_InvalidDataset(t *testing.T) {
	_, err := NewAttack(&recordingOracle{}, DefaultAttackConfig()).Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidDataset)

	ds, _ := generateTestDataset(t, "secp256k1", 13, KnownBits{Type: LSB, Bits: 32}, 114)
	ds.PublicKey = PublicKey{X: big.NewInt(1), Y: big.NewInt(1)}
	_, err = NewAttack(&recordingOracle{}, DefaultAttackConfig()).Run(context.Background(), ds)
	assert.ErrorIs(t, err, ErrInvalidDataset)
}

func TestSubsetSelector(t *testing.T) {
	sel := subsetSelector{seed: 42, total: 30, size: 10}
	a := sel.subset(1)
	assert.Equal(t, a, sel.subset(1))
	assert.NotEqual(t, a, sel.subset(2))
	assert.Len(t, a, 10)

	seen := map[int]bool{}
	for _, i := range a {
		assert.False(t, seen[i], "index %d repeated", i)
		assert.True(t, i >= 0 && i < 30)
		seen[i] = true
	}

	other := subsetSelector{seed: 43, total: 30, size: 10}
	assert.NotEqual(t, a, other.subset(1))

	// every signature is used when the subset is the whole set
	all := subsetSelector{seed: 1, total: 5, size: 5}.subset(3)
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4}, all)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "sizing", StateSizing.String())
	assert.Equal(t, "exhausted", StateExhausted.String())
	assert.Equal(t, "State(42)", State(42).String())
}
