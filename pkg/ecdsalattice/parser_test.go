package ecdsalattice

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteDataset_RoundTrip(t *testing.T) {
	for _, message := range [][]byte{testMessage, nil} {
		curve, err := LookupCurve("secp256k1")
		require.NoError(t, err)
		ds, _, err := GenerateDataset(GenerateOptions{
			Curve:   curve,
			Count:   4,
			Known:   KnownBits{Type: MSB, Bits: 7},
			Message: message,
		})
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, WriteDataset(&buf, ds))

		got, err := (&JSONParser{}).Decode(&buf)
		require.NoError(t, err)
		assert.Equal(t, "SECP256K1", got.Curve.Name())
		assert.True(t, got.PublicKey.Equal(ds.PublicKey))
		assert.Equal(t, ds.Known, got.Known)
		assert.Equal(t, ds.Message, got.Message)
		require.Len(t, got.Signatures, 4)
		for i, sig := range got.Signatures {
			want := ds.Signatures[i]
			assert.Equal(t, 0, want.R.Cmp(sig.R))
			assert.Equal(t, 0, want.S.Cmp(sig.S))
			assert.Equal(t, 0, want.KP.Cmp(sig.KP))
			assert.Equal(t, 0, ds.HashOf(want).Cmp(got.HashOf(sig)))
		}
	}
}

func TestJSONParser_IntegerFormats(t *testing.T) {
	ds, _ := generateTestDataset(t, "secp256k1", 1, KnownBits{Type: LSB, Bits: 6}, 41)
	sig := ds.Signatures[0]
	doc := `{
		"curve": "secp256k1",
		"public_key": ["0x` + ds.PublicKey.X.Text(16) + `", "` + ds.PublicKey.Y.String() + `"],
		"message": [` + bytesList(testMessage) + `],
		"known_type": "lsb",
		"known_bits": 6,
		"signatures": [{"r": ` + sig.R.String() + `, "s": "0X` + sig.S.Text(16) + `", "kp": ` + sig.KP.String() + `}]
	}`
	got, err := (&JSONParser{}).Decode(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, LSB, got.Known.Type)
	assert.Equal(t, 0, sig.R.Cmp(got.Signatures[0].R))
	assert.Equal(t, 0, sig.S.Cmp(got.Signatures[0].S))
	assert.Equal(t, testMessage, got.Message)
}

func TestJSONParser_Errors(t *testing.T) {
	ds, _ := generateTestDataset(t, "secp256k1", 1, KnownBits{Type: LSB, Bits: 6}, 42)
	pub := `[` + ds.PublicKey.X.String() + `, ` + ds.PublicKey.Y.String() + `]`
	sig := ds.Signatures[0]
	sigs := `[{"r": ` + sig.R.String() + `, "s": ` + sig.S.String() + `, "kp": ` + sig.KP.String() + `}]`

	for name, tc := range map[string]struct {
		doc  string
		want error
	}{
		"malformed":     {`{"curve": `, ErrInvalidDataset},
		"unknown curve": {`{"curve": "ed25519", "public_key": ` + pub + `, "known_type": "LSB", "known_bits": 6, "signatures": []}`, ErrUnknownCurve},
		"off curve":     {`{"curve": "secp256k1", "public_key": [1, 2], "message": [1], "known_type": "LSB", "known_bits": 6, "signatures": ` + sigs + `}`, ErrInvalidDataset},
		"bad type":      {`{"curve": "secp256k1", "public_key": ` + pub + `, "message": [1], "known_type": "MID", "known_bits": 6, "signatures": ` + sigs + `}`, ErrInvalidDataset},
		"no hash":       {`{"curve": "secp256k1", "public_key": ` + pub + `, "known_type": "LSB", "known_bits": 6, "signatures": ` + sigs + `}`, ErrInvalidDataset},
		"kp too wide":   {`{"curve": "secp256k1", "public_key": ` + pub + `, "message": [1], "known_type": "LSB", "known_bits": 6, "signatures": [{"r": 1, "s": 1, "kp": 64}]}`, ErrInvalidDataset},
		"missing r":     {`{"curve": "secp256k1", "public_key": ` + pub + `, "message": [1], "known_type": "LSB", "known_bits": 6, "signatures": [{"s": 1, "kp": 1}]}`, ErrInvalidDataset},
		"bad byte":      {`{"curve": "secp256k1", "public_key": ` + pub + `, "message": [300], "known_type": "LSB", "known_bits": 6, "signatures": ` + sigs + `}`, ErrInvalidDataset},
	} {
		_, err := (&JSONParser{}).Decode(strings.NewReader(tc.doc))
		assert.ErrorIs(t, err, tc.want, name)
	}
}

func TestJSONParser_ParseDataset_File(t *testing.T) {
	ds, _ := generateTestDataset(t, "P-384", 3, KnownBits{Type: LSB, Bits: 6}, 43)
	path := filepath.Join(t.TempDir(), "data.json")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, WriteDataset(f, ds))
	require.NoError(t, f.Close())

	got, err := (&JSONParser{}).ParseDataset(path)
	require.NoError(t, err)
	assert.Equal(t, "SECP384R1", got.Curve.Name())
	assert.Len(t, got.Signatures, 3)

	_, err = (&JSONParser{}).ParseDataset(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCSVParser_Decode(t *testing.T) {
	curve, err := LookupCurve("secp256k1")
	require.NoError(t, err)
	ds, _, err := GenerateDataset(GenerateOptions{Curve: curve, Count: 3, Known: KnownBits{Type: LSB, Bits: 8}})
	require.NoError(t, err)

	var b strings.Builder
	b.WriteString("R, S, KP, Hash\n")
	for _, sig := range ds.Signatures {
		b.WriteString("0x" + sig.R.Text(16) + "," + sig.S.String() + "," + sig.KP.String() + "," + sig.Hash.String() + "\n")
	}
	p := &CSVParser{Curve: curve, PublicKey: ds.PublicKey, Known: ds.Known}
	got, err := p.Decode(strings.NewReader(b.String()))
	require.NoError(t, err)
	require.Len(t, got.Signatures, 3)
	for i, sig := range got.Signatures {
		assert.Equal(t, 0, ds.Signatures[i].R.Cmp(sig.R))
		assert.Equal(t, 0, ds.Signatures[i].Hash.Cmp(sig.Hash))
	}

	_, err = p.Decode(strings.NewReader("r,s\n1,2\n"))
	assert.ErrorIs(t, err, ErrInvalidDataset)

	_, err = (&CSVParser{}).Decode(strings.NewReader("r,s,kp\n"))
	assert.ErrorIs(t, err, ErrInvalidDataset)
}

func bytesList(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = strconv.Itoa(int(v))
	}
	return strings.Join(parts, ", ")
}
