// Package fplll runs lattice reductions through the fplll command line tool.
//
// fplll reads integer matrices in the bracketed text format
//
//	[[1 0 3]
//	[0 1 5]
//	[0 0 7]
//	]
//
// from standard input and writes its result in the same format.
package fplll

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrOutput means fplll printed something that is not a matrix of the expected
// shape.
var ErrOutput = errors.New("fplll: unexpected output")

// Oracle reduces lattices by running the fplll binary.
type Oracle struct {
	path   string
	logger zerolog.Logger
}

// New locates the fplll binary. An empty path means "fplll" on $PATH.
func New(path string) (*Oracle, error) {
	if path == "" {
		path = "fplll"
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return nil, fmt.Errorf("fplll: binary not found: %w", err)
	}
	return &Oracle{path: resolved, logger: zerolog.Nop()}, nil
}

// WithLogger sets the logger used for subprocess diagnostics.
func (o *Oracle) WithLogger(logger zerolog.Logger) *Oracle {
	o.logger = logger
	return o
}

// Path returns the resolved binary path.
func (o *Oracle) Path() string {
	return o.path
}

// Name implements the reduction oracle interface.
func (o *Oracle) Name() string {
	return "fplll"
}

// Reduce runs LLL when blockSize is 0 and BKZ otherwise. Block sizes larger
// than the lattice dimension are clamped.
func (o *Oracle) Reduce(ctx context.Context, basis [][]*big.Int, blockSize int) ([][]*big.Int, error) {
	args := []string{"-a", "lll"}
	if blockSize > 0 {
		if blockSize > len(basis) {
			blockSize = len(basis)
		}
		args = []string{"-a", "bkz", "-b", strconv.Itoa(blockSize)}
	}

	var in bytes.Buffer
	if err := FormatMatrix(&in, basis); err != nil {
		return nil, err
	}
	out, err := o.run(ctx, args, &in)
	if err != nil {
		return nil, err
	}
	reduced, err := ParseMatrix(out)
	if err != nil {
		return nil, err
	}
	if len(reduced) == 0 || len(reduced[0]) != len(basis[0]) {
		return nil, fmt.Errorf("%w: reduced basis has the wrong shape", ErrOutput)
	}
	return reduced, nil
}

// ClosestVector runs fplll's exact CVP solver.
func (o *Oracle) ClosestVector(ctx context.Context, basis [][]*big.Int, target []*big.Int) ([]*big.Int, error) {
	var in bytes.Buffer
	if err := FormatMatrix(&in, basis); err != nil {
		return nil, err
	}
	if err := FormatVector(&in, target); err != nil {
		return nil, err
	}
	out, err := o.run(ctx, []string{"-a", "cvp"}, &in)
	if err != nil {
		return nil, err
	}
	point, err := ParseVector(out)
	if err != nil {
		return nil, err
	}
	if len(point) != len(target) {
		return nil, fmt.Errorf("%w: closest vector has %d coordinates, want %d", ErrOutput, len(point), len(target))
	}
	return point, nil
}

func (o *Oracle) run(ctx context.Context, args []string, stdin io.Reader) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, o.path, args...)
	cmd.Stdin = stdin
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	o.logger.Debug().Strs("args", args).Dur("elapsed", time.Since(start)).Msg("fplll finished")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("fplll %s: %v\n%s", strings.Join(args, " "), err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// FormatMatrix writes basis in fplll's matrix format.
func FormatMatrix(w io.Writer, basis [][]*big.Int) error {
	if len(basis) == 0 {
		return fmt.Errorf("fplll: empty matrix")
	}
	var b strings.Builder
	b.WriteByte('[')
	for _, row := range basis {
		if len(row) != len(basis[0]) {
			return fmt.Errorf("fplll: ragged matrix")
		}
		writeList(&b, row)
		b.WriteByte('\n')
	}
	b.WriteString("]\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// FormatVector writes v in fplll's vector format.
func FormatVector(w io.Writer, v []*big.Int) error {
	var b strings.Builder
	writeList(&b, v)
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}

func writeList(b *strings.Builder, v []*big.Int) {
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(x.String())
	}
	b.WriteByte(']')
}

// ParseMatrix parses a matrix in fplll's format.
func ParseMatrix(data []byte) ([][]*big.Int, error) {
	lists, depth, err := parseLists(data)
	if err != nil {
		return nil, err
	}
	if depth != 2 {
		return nil, fmt.Errorf("%w: expected a matrix", ErrOutput)
	}
	for i, row := range lists {
		if len(row) != len(lists[0]) {
			return nil, fmt.Errorf("%w: row %d has %d entries, want %d", ErrOutput, i, len(row), len(lists[0]))
		}
	}
	return lists, nil
}

// ParseVector parses a vector in fplll's format.
func ParseVector(data []byte) ([]*big.Int, error) {
	lists, depth, err := parseLists(data)
	if err != nil {
		return nil, err
	}
	if depth != 1 || len(lists) != 1 {
		return nil, fmt.Errorf("%w: expected a vector", ErrOutput)
	}
	return lists[0], nil
}

// parseLists returns the innermost bracketed lists of data and the maximum
// nesting depth.
func parseLists(data []byte) ([][]*big.Int, int, error) {
	var (
		lists    [][]*big.Int
		current  []*big.Int
		depth    int
		maxDepth int
		token    strings.Builder
	)
	flush := func() error {
		if token.Len() == 0 {
			return nil
		}
		v, ok := new(big.Int).SetString(token.String(), 10)
		if !ok {
			return fmt.Errorf("%w: bad integer %q", ErrOutput, token.String())
		}
		token.Reset()
		current = append(current, v)
		return nil
	}
	for _, c := range data {
		switch {
		case c == '[':
			if err := flush(); err != nil {
				return nil, 0, err
			}
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
			current = nil
		case c == ']':
			if depth == 0 {
				return nil, 0, fmt.Errorf("%w: unbalanced brackets", ErrOutput)
			}
			if err := flush(); err != nil {
				return nil, 0, err
			}
			if depth == maxDepth {
				lists = append(lists, current)
			}
			current = nil
			depth--
		case c == '-' || (c >= '0' && c <= '9'):
			if depth == 0 {
				return nil, 0, fmt.Errorf("%w: value outside brackets", ErrOutput)
			}
			token.WriteByte(c)
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == ',':
			if err := flush(); err != nil {
				return nil, 0, err
			}
		default:
			return nil, 0, fmt.Errorf("%w: unexpected character %q", ErrOutput, c)
		}
	}
	if depth != 0 {
		return nil, 0, fmt.Errorf("%w: unbalanced brackets", ErrOutput)
	}
	if len(lists) == 0 {
		return nil, 0, fmt.Errorf("%w: no data", ErrOutput)
	}
	return lists, maxDepth, nil
}
