// Command lattice-attack recovers ECDSA private keys from signatures with
// partially known nonces, and generates demo datasets to attack.
package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strings"

	"github.com/mahdiidarabi/ecdsa-lattice/internal/lll"
	"github.com/mahdiidarabi/ecdsa-lattice/pkg/ecdsalattice"
	"github.com/mahdiidarabi/ecdsa-lattice/pkg/fplll"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

var (
	fileFlag = &cli.StringFlag{
		Name:    "file",
		Aliases: []string{"f"},
		Usage:   "Dataset JSON file",
		Value:   "data.json",
	}
	verbosityFlag = &cli.StringFlag{
		Name:    "verbosity",
		Usage:   "Log level (trace, debug, info, warn, error)",
		Value:   "info",
		EnvVars: []string{"LATTICE_ATTACK_VERBOSITY"},
	}
	seedFlag = &cli.Uint64Flag{
		Name:    "seed",
		Usage:   "Seed for subset selection (attack) or data generation (gen); 0 picks a random one when generating",
		EnvVars: []string{"LATTICE_ATTACK_SEED"},
	}

	loopFlag = &cli.BoolFlag{
		Name:    "loop",
		Aliases: []string{"l"},
		Usage:   "Keep trying new signature subsets until the key is found",
	}
	backendFlag = &cli.StringFlag{
		Name:    "backend",
		Usage:   "Lattice reduction back-end: lll (built in) or fplll (external binary)",
		Value:   "lll",
		EnvVars: []string{"LATTICE_ATTACK_BACKEND"},
	}
	fplllPathFlag = &cli.StringFlag{
		Name:    "fplll-path",
		Usage:   "Path of the fplll binary",
		EnvVars: []string{"LATTICE_ATTACK_FPLLL"},
	}
	modeFlag = &cli.StringFlag{
		Name:    "mode",
		Usage:   "Lattice variant: svp (embedding) or cvp (closest vector)",
		Value:   "svp",
		EnvVars: []string{"LATTICE_ATTACK_MODE"},
	}
	bkzFlag = &cli.BoolFlag{
		Name:  "bkz",
		Usage: "Follow LLL with BKZ passes of growing block size",
	}
	attemptsFlag = &cli.IntFlag{
		Name:    "attempts",
		Usage:   "Maximum number of signature subsets to try",
		Value:   10,
		EnvVars: []string{"LATTICE_ATTACK_ATTEMPTS"},
	}
	workersFlag = &cli.IntFlag{
		Name:    "workers",
		Usage:   "Number of attempts run concurrently",
		Value:   1,
		EnvVars: []string{"LATTICE_ATTACK_WORKERS"},
	}
	marginFlag = &cli.IntFlag{
		Name:    "margin",
		Usage:   "Signatures added on top of the minimum estimate",
		Value:   ecdsalattice.DefaultSampleEstimator().Margin,
		EnvVars: []string{"LATTICE_ATTACK_MARGIN"},
	}

	messageFlag = &cli.StringFlag{
		Name:    "message",
		Aliases: []string{"m"},
		Usage:   "Message signed by every signature (random hashes when empty)",
	}
	curveFlag = &cli.StringFlag{
		Name:    "curve",
		Aliases: []string{"c"},
		Usage:   "Elliptic curve name (" + strings.Join(ecdsalattice.CurveNames(), ", ") + ")",
		Value:   "secp256k1",
	}
	bitsFlag = &cli.IntFlag{
		Name:    "bits",
		Aliases: []string{"b"},
		Usage:   "Number of known bits per nonce (at least 4 to be attackable)",
		Value:   6,
	}
	typeFlag = &cli.StringFlag{
		Name:    "type",
		Aliases: []string{"t"},
		Usage:   "Known bits type: LSB or MSB",
		Value:   "LSB",
	}
	countFlag = &cli.IntFlag{
		Name:    "count",
		Aliases: []string{"n"},
		Usage:   "Number of signatures to generate",
		Value:   1000,
	}
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "lattice-attack",
		Usage: "recover ECDSA keys from signatures with leaked nonce bits",
		Flags: []cli.Flag{verbosityFlag},
		Commands: []*cli.Command{
			{
				Name:   "attack",
				Usage:  "Run the lattice attack on a dataset",
				Flags:  []cli.Flag{fileFlag, loopFlag, backendFlag, fplllPathFlag, modeFlag, bkzFlag, attemptsFlag, workersFlag, marginFlag, seedFlag},
				Action: attack,
			},
			{
				Name:   "gen",
				Usage:  "Generate a demo dataset with leaky nonces",
				Flags:  []cli.Flag{fileFlag, messageFlag, curveFlag, bitsFlag, typeFlag, countFlag, seedFlag},
				Action: generate,
			},
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(ctx *cli.Context) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(ctx.String(verbosityFlag.Name))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid verbosity: %w", err)
	}
	return zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		w.Out = ctx.App.ErrWriter
		if w.Out == nil {
			w.Out = os.Stderr
		}
	})).Level(level).With().Timestamp().Logger(), nil
}

func newOracle(ctx *cli.Context, logger zerolog.Logger) (ecdsalattice.ReductionOracle, error) {
	switch backend := ctx.String(backendFlag.Name); backend {
	case "lll":
		return lll.NewOracle(), nil
	case "fplll":
		o, err := fplll.New(ctx.String(fplllPathFlag.Name))
		if err != nil {
			return nil, err
		}
		return o.WithLogger(logger), nil
	default:
		return nil, fmt.Errorf("unknown back-end %q (want lll or fplll)", backend)
	}
}

func attack(ctx *cli.Context) error {
	logger, err := newLogger(ctx)
	if err != nil {
		return err
	}
	mode, err := ecdsalattice.ParseMode(ctx.String(modeFlag.Name))
	if err != nil {
		return err
	}
	oracle, err := newOracle(ctx, logger)
	if err != nil {
		return err
	}

	attempts := ctx.Int(attemptsFlag.Name)
	if ctx.Bool(loopFlag.Name) {
		attempts = math.MaxInt32
	}
	schedule := ecdsalattice.LLLSchedule()
	if ctx.Bool(bkzFlag.Name) {
		schedule = ecdsalattice.BKZSchedule()
	}

	client := ecdsalattice.NewClient().
		WithMode(mode).
		WithSchedule(schedule).
		WithMaxAttempts(attempts).
		WithWorkers(ctx.Int(workersFlag.Name)).
		WithMargin(ctx.Int(marginFlag.Name)).
		WithSeed(ctx.Uint64(seedFlag.Name)).
		WithLogger(logger).
		WithOracle(oracle)

	result, err := client.RecoverKey(ctx.Context, ctx.String(fileFlag.Name))
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.App.Writer, "Key found \\o/\n0x%064x\n", result.PrivateKey)
	logger.Info().Int("attempt", result.Attempts).Int("block_size", result.BlockSize).Msg("Attack succeeded")
	return nil
}

func generate(ctx *cli.Context) error {
	logger, err := newLogger(ctx)
	if err != nil {
		return err
	}
	curve, err := ecdsalattice.LookupCurve(ctx.String(curveFlag.Name))
	if err != nil {
		return err
	}
	known, err := ecdsalattice.ParseKnownType(ctx.String(typeFlag.Name))
	if err != nil {
		return err
	}

	opts := ecdsalattice.GenerateOptions{
		Curve: curve,
		Count: ctx.Int(countFlag.Name),
		Known: ecdsalattice.KnownBits{Type: known, Bits: ctx.Int(bitsFlag.Name)},
	}
	if ctx.IsSet(messageFlag.Name) {
		opts.Message = []byte(ctx.String(messageFlag.Name))
	}
	if seed := ctx.Uint64(seedFlag.Name); seed != 0 {
		opts.Rand = newSeededReader(seed)
	}
	ds, key, err := ecdsalattice.GenerateDataset(opts)
	if err != nil {
		return err
	}

	path := ctx.String(fileFlag.Name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := ecdsalattice.WriteDataset(f, ds); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	fmt.Fprintf(ctx.App.Writer, "Private key to be found (as demo):\n0x%x\n", key)
	logger.Info().
		Str("file", path).
		Str("curve", curve.Name()).
		Int("signatures", opts.Count).
		Int("known_bits", opts.Known.Bits).
		Str("known_type", known.String()).
		Msg("Dataset written")
	return nil
}
