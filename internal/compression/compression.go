// Package compression provides the codecs used for stored model artifacts.
// The algorithm is chosen by registry configuration; artifacts written with
// one algorithm must be read back with the same one.
package compression

import (
	"fmt"
	"strings"
)

// Algorithm identifies an artifact codec.
type Algorithm uint8

const (
	None   Algorithm = 0
	Snappy Algorithm = 1
)

// String returns the configuration name of the algorithm.
func (a Algorithm) String() string {
	switch a {
	case None:
		return "none"
	case Snappy:
		return "snappy"
	}
	return fmt.Sprintf("algorithm(%d)", a)
}

// ParseAlgorithm converts a configuration value to an Algorithm. The empty
// string selects Snappy, the default artifact codec.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "snappy":
		return Snappy, nil
	case "none":
		return None, nil
	}
	return None, fmt.Errorf("unknown compression algorithm: %q", s)
}

// Compressor encodes and decodes artifact bytes.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)

	// Algorithm returns the codec this compressor implements.
	Algorithm() Algorithm
}

// GetCompressor returns a compressor for the given algorithm.
func GetCompressor(algo Algorithm) (Compressor, error) {
	switch algo {
	case None:
		return &NoneCompressor{}, nil
	case Snappy:
		return NewSnappyCompressor(), nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %d", algo)
	}
}

// NoneCompressor stores artifacts uncompressed. Useful when artifacts need
// to be inspected on disk.
type NoneCompressor struct{}

func (n *NoneCompressor) Compress(data []byte) ([]byte, error) {
	return data, nil
}

func (n *NoneCompressor) Decompress(data []byte) ([]byte, error) {
	return data, nil
}

func (n *NoneCompressor) Algorithm() Algorithm {
	return None
}
