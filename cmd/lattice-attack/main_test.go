package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	err := app.RunContext(context.Background(), append([]string{"lattice-attack"}, args...))
	return out.String(), err
}

func TestGenerateThenAttack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	out, err := run(t, "--verbosity", "warn", "gen", "-f", path, "-m", "hello", "-b", "32", "-n", "16", "--seed", "5")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	key := strings.TrimPrefix(lines[1], "0x")

	out, err = run(t, "--verbosity", "warn", "attack", "-f", path, "--seed", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Key found")
	got := strings.TrimLeft(strings.TrimPrefix(strings.TrimSpace(strings.Split(out, "\n")[1]), "0x"), "0")
	assert.Equal(t, strings.TrimLeft(key, "0"), got)
}

func TestGenerateIsReproducible(t *testing.T) {
	dir := t.TempDir()
	a, err := run(t, "--verbosity", "error", "gen", "-f", filepath.Join(dir, "a.json"), "-n", "2", "--seed", "9")
	require.NoError(t, err)
	b, err := run(t, "--verbosity", "error", "gen", "-f", filepath.Join(dir, "b.json"), "-n", "2", "--seed", "9")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestAttackInfeasible(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	_, err := run(t, "--verbosity", "error", "gen", "-f", path, "-b", "3", "-n", "5")
	require.NoError(t, err)

	_, err = run(t, "--verbosity", "error", "attack", "-f", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "infeasible")
}

func TestAttackRejectsBadFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	_, err := run(t, "--verbosity", "error", "gen", "-f", path, "-b", "32", "-n", "13")
	require.NoError(t, err)

	_, err = run(t, "attack", "-f", path, "--mode", "bogus")
	assert.Error(t, err)
	_, err = run(t, "attack", "-f", path, "--backend", "bogus")
	assert.Error(t, err)
	_, err = run(t, "--verbosity", "loud", "attack", "-f", path)
	assert.Error(t, err)
	_, err = run(t, "gen", "-f", path, "-c", "ed25519")
	assert.Error(t, err)
}
