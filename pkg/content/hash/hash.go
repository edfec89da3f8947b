// Package hash implements the content digest used as the deduplication key.
//
// The digest is a content fingerprint, not an integrity proof: md5 is the
// default for compatibility with existing file_url layouts, and the algorithm
// can be swapped through configuration without changing the Hasher contract.
package hash

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	stdhash "hash"
	"io"
	"strings"

	"github.com/cespare/xxhash/v2"
	"lukechampine.com/blake3"
)

// Algorithm names a supported digest.
type Algorithm string

const (
	MD5    Algorithm = "md5"
	SHA256 Algorithm = "sha256"
	XXHash Algorithm = "xxhash"
	BLAKE3 Algorithm = "blake3"
)

// DefaultAlgorithm is used when configuration leaves the algorithm empty.
const DefaultAlgorithm = MD5

// Algorithms lists every supported algorithm.
func Algorithms() []Algorithm {
	return []Algorithm{MD5, SHA256, XXHash, BLAKE3}
}

// Hasher computes hex-encoded digests over byte content.
//
// Implementations are deterministic and safe for concurrent use.
type Hasher interface {
	// Algorithm returns the digest name.
	Algorithm() Algorithm

	// Sum returns the lowercase hex digest of data.
	Sum(data []byte) string

	// SumReader streams r through the digest.
	SumReader(r io.Reader) (string, error)
}

type hasher struct {
	algo    Algorithm
	newHash func() stdhash.Hash
}

// New returns the Hasher for algo. An empty algo selects DefaultAlgorithm.
func New(algo Algorithm) (Hasher, error) {
	if algo == "" {
		algo = DefaultAlgorithm
	}

	switch Algorithm(strings.ToLower(string(algo))) {
	case MD5:
		return &hasher{algo: MD5, newHash: md5.New}, nil
	case SHA256:
		return &hasher{algo: SHA256, newHash: sha256.New}, nil
	case XXHash:
		return &hasher{algo: XXHash, newHash: func() stdhash.Hash { return xxhash.New() }}, nil
	case BLAKE3:
		return &hasher{algo: BLAKE3, newHash: func() stdhash.Hash { return blake3.New(32, nil) }}, nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", algo)
	}
}

// MustNew is New for algorithms known at compile time.
func MustNew(algo Algorithm) Hasher {
	h, err := New(algo)
	if err != nil {
		panic(err)
	}
	return h
}

func (h *hasher) Algorithm() Algorithm { return h.algo }

func (h *hasher) Sum(data []byte) string {
	d := h.newHash()
	d.Write(data)
	return hex.EncodeToString(d.Sum(nil))
}

func (h *hasher) SumReader(r io.Reader) (string, error) {
	d := h.newHash()
	if _, err := io.Copy(d, r); err != nil {
		return "", fmt.Errorf("hash %s: %w", h.algo, err)
	}
	return hex.EncodeToString(d.Sum(nil)), nil
}

// Suffix returns the last n hex characters of digest, used to build
// collision-free on-disk names. n larger than the digest returns it whole.
func Suffix(digest string, n int) string {
	if n <= 0 || n >= len(digest) {
		return digest
	}
	return digest[len(digest)-n:]
}
