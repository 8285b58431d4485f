package ecdsalattice

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/zeebo/blake3"
	"golang.org/x/sync/errgroup"
)

// State is a step of the attack state machine.
type State int

const (
	StateSizing State = iota
	StateBuilding
	StateReducing
	StateVerifying
	StateRetrying
	StateSuccess
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateSizing:
		return "sizing"
	case StateBuilding:
		return "building"
	case StateReducing:
		return "reducing"
	case StateVerifying:
		return "verifying"
	case StateRetrying:
		return "retrying"
	case StateSuccess:
		return "success"
	case StateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// AttackConfig configures the orchestrator.
type AttackConfig struct {
	// Mode selects the lattice variant.
	Mode Mode
	// MaxAttempts bounds the number of signature subsets tried.
	MaxAttempts int
	// Seed makes subset selection reproducible. Attempt i shuffles with a seed
	// derived from (Seed, i).
	Seed uint64
	// Workers is the number of attempts run concurrently.
	Workers int
	// Schedule lists the reduction passes run on each lattice, see
	// LLLSchedule and BKZSchedule.
	Schedule  []int
	Estimator SampleEstimator
	Logger    zerolog.Logger
	// OnState, when set, is called on every state change. attempt is 0 while
	// sizing and on the final transition.
	OnState func(attempt int, s State)
}

// DefaultAttackConfig returns the default configuration: shortest vector mode,
// one LLL pass, ten attempts, one worker.
func DefaultAttackConfig() AttackConfig {
	return AttackConfig{
		Mode:        ShortestVector,
		MaxAttempts: 10,
		Workers:     1,
		Schedule:    LLLSchedule(),
		Estimator:   DefaultSampleEstimator(),
		Logger:      zerolog.Nop(),
	}
}

// Attack drives the recovery: it sizes the lattice, picks signature subsets,
// builds and reduces lattices and verifies candidates until a key is found or
// the attempt budget runs out.
type Attack struct {
	oracle ReductionOracle
	cfg    AttackConfig
	mu     sync.Mutex
}

// NewAttack returns an attack using oracle for lattice reduction.
func NewAttack(oracle ReductionOracle, cfg AttackConfig) *Attack {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if len(cfg.Schedule) == 0 {
		cfg.Schedule = LLLSchedule()
	}
	return &Attack{oracle: oracle, cfg: cfg}
}

// Run attacks ds. It returns a verified key, or an error wrapping
// ErrInfeasible or ErrExhausted. Context and oracle failures are returned as
// they are.
func (a *Attack) Run(ctx context.Context, ds *Dataset) (*RecoveryResult, error) {
	a.enter(0, StateSizing)
	if ds == nil {
		return nil, fmt.Errorf("%w: nil dataset", ErrInvalidDataset)
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	orderBits := ds.Curve.Order().BitLen()
	m, err := a.cfg.Estimator.Estimate(orderBits, ds.Known.Bits)
	if err != nil {
		a.enter(0, StateExhausted)
		return nil, err
	}
	if len(ds.Signatures) < m {
		a.enter(0, StateExhausted)
		return nil, fmt.Errorf("%w: %d signatures available, %d required for %d known bits on %s",
			ErrInfeasible, len(ds.Signatures), m, ds.Known.Bits, ds.Curve.Name())
	}

	a.cfg.Logger.Info().
		Str("curve", ds.Curve.Name()).
		Str("known_type", ds.Known.Type.String()).
		Int("known_bits", ds.Known.Bits).
		Int("signatures", len(ds.Signatures)).
		Int("subset", m).
		Str("mode", a.cfg.Mode.String()).
		Str("oracle", a.oracle.Name()).
		Msg("Starting lattice attack")

	sel := subsetSelector{seed: a.cfg.Seed, total: len(ds.Signatures), size: m}
	var res *RecoveryResult
	if a.cfg.Workers == 1 {
		res, err = a.runSequential(ctx, ds, sel)
	} else {
		res, err = a.runParallel(ctx, ds, sel)
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		a.enter(0, StateExhausted)
		return nil, fmt.Errorf("%w: %d attempts with %d signatures each", ErrExhausted, a.cfg.MaxAttempts, m)
	}
	a.enter(0, StateSuccess)
	return res, nil
}

func (a *Attack) runSequential(ctx context.Context, ds *Dataset, sel subsetSelector) (*RecoveryResult, error) {
	for attempt := 1; attempt <= a.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := a.attempt(ctx, ds, sel, attempt)
		if err == nil {
			return res, nil
		}
		if !recoverable(err) {
			return nil, err
		}
		a.enter(attempt, StateRetrying)
	}
	return nil, nil
}

var errFound = errors.New("key found")

func (a *Attack) runParallel(ctx context.Context, ds *Dataset, sel subsetSelector) (*RecoveryResult, error) {
	var (
		next   int64
		once   sync.Once
		result *RecoveryResult
	)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < a.cfg.Workers; w++ {
		g.Go(func() error {
			for gctx.Err() == nil {
				attempt := int(atomic.AddInt64(&next, 1))
				if attempt > a.cfg.MaxAttempts {
					return nil
				}
				res, err := a.attempt(gctx, ds, sel, attempt)
				if err == nil {
					once.Do(func() { result = res })
					return errFound
				}
				if errors.Is(err, context.Canceled) && gctx.Err() != nil {
					return nil
				}
				if !recoverable(err) {
					return err
				}
				a.enter(attempt, StateRetrying)
			}
			return nil
		})
	}
	err := g.Wait()
	if result != nil {
		return result, nil
	}
	if err != nil && !errors.Is(err, errFound) {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, nil
}

// attempt runs Building, Reducing and Verifying for one subset.
func (a *Attack) attempt(ctx context.Context, ds *Dataset, sel subsetSelector, attempt int) (*RecoveryResult, error) {
	log := a.cfg.Logger.With().Int("attempt", attempt).Logger()

	a.enter(attempt, StateBuilding)
	subset := sel.subset(attempt)
	sigs := make([]*Signature, len(subset))
	for i, idx := range subset {
		src := ds.Signatures[idx]
		sigs[i] = &Signature{R: src.R, S: src.S, KP: src.KP, Hash: ds.HashOf(src)}
	}
	lat, err := NewLatticeBuilder(ds.Curve, ds.Known, a.cfg.Mode).Build(sigs)
	if err != nil {
		log.Debug().Err(err).Msg("Subset rejected")
		return nil, err
	}
	log.Debug().Int("dimension", len(lat.Basis)).Msg("Lattice built")

	basis := lat.Basis
	for _, blockSize := range a.cfg.Schedule {
		a.enter(attempt, StateReducing)
		start := time.Now()
		reduced, err := a.oracle.Reduce(ctx, basis, blockSize)
		if err != nil {
			return nil, fmt.Errorf("%s reduction (block size %d): %w", a.oracle.Name(), blockSize, err)
		}

		var cands *Candidates
		if a.cfg.Mode == ClosestVector {
			point, err := a.oracle.ClosestVector(ctx, reduced, lat.Target)
			if err != nil {
				return nil, fmt.Errorf("%s closest vector: %w", a.oracle.Name(), err)
			}
			cands = ExtractClosest(lat, point)
		} else {
			cands = ExtractCandidates(lat, reduced)
		}
		log.Debug().Int("block_size", blockSize).Dur("elapsed", time.Since(start)).Msg("Reduction pass done")

		a.enter(attempt, StateVerifying)
		for d, ok := cands.Next(); ok; d, ok = cands.Next() {
			if VerifyKey(ds.Curve, d, ds.PublicKey) {
				log.Info().Int("block_size", blockSize).Msg("Found private key")
				return &RecoveryResult{
					PrivateKey: d,
					Attempts:   attempt,
					Subset:     subset,
					Mode:       a.cfg.Mode,
					BlockSize:  blockSize,
				}, nil
			}
		}
		basis = reduced
	}
	log.Debug().Msg("No candidate matched the public key")
	return nil, ErrReductionInconclusive
}

func (a *Attack) enter(attempt int, s State) {
	a.cfg.Logger.Trace().Int("attempt", attempt).Str("state", s.String()).Msg("State change")
	if a.cfg.OnState != nil {
		a.mu.Lock()
		a.cfg.OnState(attempt, s)
		a.mu.Unlock()
	}
}

func recoverable(err error) bool {
	return errors.Is(err, ErrDegenerateSubset) || errors.Is(err, ErrReductionInconclusive)
}

// subsetSelector picks the signatures of each attempt. The choice depends only
// on the seed and the attempt number.
type subsetSelector struct {
	seed  uint64
	total int
	size  int
}

func (s subsetSelector) subset(attempt int) []int {
	rng := rand.New(rand.NewSource(s.attemptSeed(attempt)))
	return rng.Perm(s.total)[:s.size]
}

func (s subsetSelector) attemptSeed(attempt int) int64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], s.seed)
	binary.LittleEndian.PutUint64(buf[8:], uint64(attempt))
	h := blake3.New()
	_, _ = h.Write(buf[:])
	sum := h.Sum(nil)
	return int64(binary.LittleEndian.Uint64(sum[:8]) >> 1)
}
