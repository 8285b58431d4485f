package main

import (
	"encoding/binary"
	"io"

	"github.com/zeebo/blake3"
)

// newSeededReader returns a deterministic byte stream derived from seed, so
// that generated datasets can be reproduced.
func newSeededReader(seed uint64) io.Reader {
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:], seed)
	h, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic(err)
	}
	_, _ = h.Write([]byte("lattice-attack gen"))
	return h.Digest()
}
