package ecdsalattice

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"strconv"
	"strings"
)

// DatasetParser loads an attack dataset from a source.
type DatasetParser interface {
	// ParseDataset parses the dataset stored at source.
	ParseDataset(source string) (*Dataset, error)
}

// JSONParser reads the JSON dataset format:
//
//	{
//	  "curve": "SECP256K1",
//	  "public_key": [Qx, Qy],
//	  "message": [104, 105],          // optional, shared by every signature
//	  "known_type": "LSB",
//	  "known_bits": 6,
//	  "signatures": [{"r": ..., "s": ..., "kp": ..., "hash": ...}]
//	}
//
// "hash" is required on every signature when "message" is absent. Integers are
// JSON numbers, decimal strings or 0x-prefixed hex strings.
type JSONParser struct{}

// ParseDataset parses a JSON dataset file.
func (p *JSONParser) ParseDataset(source string) (*Dataset, error) {
	file, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer file.Close()
	return p.Decode(file)
}

// Decode parses a JSON dataset from r.
func (p *JSONParser) Decode(r io.Reader) (*Dataset, error) {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()

	var raw datasetFile
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON: %v", ErrInvalidDataset, err)
	}
	return raw.dataset()
}

type datasetFile struct {
	Curve      string          `json:"curve"`
	PublicKey  []jsonInt       `json:"public_key"`
	Message    []int           `json:"message,omitempty"`
	KnownType  string          `json:"known_type"`
	KnownBits  int             `json:"known_bits"`
	Signatures []signatureFile `json:"signatures"`
}

type signatureFile struct {
	R    jsonInt  `json:"r"`
	S    jsonInt  `json:"s"`
	KP   jsonInt  `json:"kp"`
	Hash *jsonInt `json:"hash,omitempty"`
}

func (f *datasetFile) dataset() (*Dataset, error) {
	curve, err := LookupCurve(f.Curve)
	if err != nil {
		return nil, err
	}
	known, err := ParseKnownType(f.KnownType)
	if err != nil {
		return nil, err
	}
	if len(f.PublicKey) != 2 || f.PublicKey[0].Int == nil || f.PublicKey[1].Int == nil {
		return nil, fmt.Errorf("%w: public_key must be a list of two coordinates", ErrInvalidDataset)
	}

	ds := &Dataset{
		Curve:     curve,
		PublicKey: PublicKey{X: f.PublicKey[0].Int, Y: f.PublicKey[1].Int},
		Known:     KnownBits{Type: known, Bits: f.KnownBits},
	}
	if len(f.Message) > 0 {
		ds.Message = make([]byte, len(f.Message))
		for i, b := range f.Message {
			if b < 0 || b > 255 {
				return nil, fmt.Errorf("%w: message byte %d out of range: %d", ErrInvalidDataset, i, b)
			}
			ds.Message[i] = byte(b)
		}
	}

	ds.Signatures = make([]*Signature, len(f.Signatures))
	for i, s := range f.Signatures {
		if s.R.Int == nil || s.S.Int == nil || s.KP.Int == nil {
			return nil, fmt.Errorf("%w: signature %d: r, s and kp are required", ErrInvalidDataset, i)
		}
		sig := &Signature{R: s.R.Int, S: s.S.Int, KP: s.KP.Int}
		if s.Hash != nil {
			sig.Hash = s.Hash.Int
		}
		ds.Signatures[i] = sig
	}

	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// jsonInt is an arbitrary size integer in a JSON document.
type jsonInt struct {
	*big.Int
}

func (j *jsonInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	text := string(data)
	if len(data) > 0 && data[0] == '"' {
		unquoted, err := strconv.Unquote(text)
		if err != nil {
			return err
		}
		text = unquoted
	}
	v, err := parseBigInt(text)
	if err != nil {
		return err
	}
	j.Int = v
	return nil
}

func (j jsonInt) MarshalJSON() ([]byte, error) {
	if j.Int == nil {
		return []byte("null"), nil
	}
	return []byte(j.Int.String()), nil
}

// parseBigInt parses a decimal or 0x-prefixed hexadecimal integer.
func parseBigInt(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	z, ok := new(big.Int).SetString(s, base)
	if !ok || s == "" {
		return nil, fmt.Errorf("invalid number format: %q", s)
	}
	return z, nil
}

// CSVParser reads signatures from a CSV file with a header row. The dataset
// metadata is not part of the file and comes from the parser fields.
type CSVParser struct {
	Curve     Curve
	PublicKey PublicKey
	Known     KnownBits
	// Message is used when the file has no hash column.
	Message []byte

	RCol    string // default "r"
	SCol    string // default "s"
	KPCol   string // default "kp"
	HashCol string // default "hash", optional in the file
}

// ParseDataset parses a CSV signature file.
func (p *CSVParser) ParseDataset(source string) (*Dataset, error) {
	file, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer file.Close()
	return p.Decode(file)
}

// Decode parses CSV signatures from r.
func (p *CSVParser) Decode(r io.Reader) (*Dataset, error) {
	if p.Curve == nil {
		return nil, fmt.Errorf("%w: CSV parser needs a curve", ErrInvalidDataset)
	}
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read header: %v", ErrInvalidDataset, err)
	}
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.ToLower(strings.TrimSpace(col))] = i
	}
	column := func(name, def string) int {
		if name == "" {
			name = def
		}
		if i, ok := index[strings.ToLower(name)]; ok {
			return i
		}
		return -1
	}
	rIdx, sIdx, kpIdx := column(p.RCol, "r"), column(p.SCol, "s"), column(p.KPCol, "kp")
	hashIdx := column(p.HashCol, "hash")
	if rIdx < 0 || sIdx < 0 || kpIdx < 0 {
		return nil, fmt.Errorf("%w: missing required columns r, s or kp", ErrInvalidDataset)
	}

	ds := &Dataset{
		Curve:     p.Curve,
		PublicKey: p.PublicKey,
		Message:   p.Message,
		Known:     p.Known,
	}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read record: %v", ErrInvalidDataset, err)
		}

		field := func(i int, name string) (*big.Int, error) {
			if i >= len(record) {
				return nil, fmt.Errorf("%w: line %d: missing %s", ErrInvalidDataset, line, name)
			}
			v, err := parseBigInt(record[i])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: failed to parse %s: %v", ErrInvalidDataset, line, name, err)
			}
			return v, nil
		}
		sig := &Signature{}
		if sig.R, err = field(rIdx, "r"); err != nil {
			return nil, err
		}
		if sig.S, err = field(sIdx, "s"); err != nil {
			return nil, err
		}
		if sig.KP, err = field(kpIdx, "kp"); err != nil {
			return nil, err
		}
		if hashIdx >= 0 && hashIdx < len(record) && strings.TrimSpace(record[hashIdx]) != "" {
			if sig.Hash, err = field(hashIdx, "hash"); err != nil {
				return nil, err
			}
		}
		ds.Signatures = append(ds.Signatures, sig)
	}

	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// WriteDataset writes ds in the JSON dataset format.
func WriteDataset(w io.Writer, ds *Dataset) error {
	f := datasetFile{
		Curve:      ds.Curve.Name(),
		PublicKey:  []jsonInt{{ds.PublicKey.X}, {ds.PublicKey.Y}},
		KnownType:  ds.Known.Type.String(),
		KnownBits:  ds.Known.Bits,
		Signatures: make([]signatureFile, len(ds.Signatures)),
	}
	if ds.Message != nil {
		f.Message = make([]int, len(ds.Message))
		for i, b := range ds.Message {
			f.Message[i] = int(b)
		}
	}
	for i, sig := range ds.Signatures {
		sf := signatureFile{R: jsonInt{sig.R}, S: jsonInt{sig.S}, KP: jsonInt{sig.KP}}
		if sig.Hash != nil {
			sf.Hash = &jsonInt{sig.Hash}
		}
		f.Signatures[i] = sf
	}

	enc := json.NewEncoder(w)
	if err := enc.Encode(&f); err != nil {
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	return nil
}
