package hash

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNew_KnownDigests(t *testing.T) {
	md5h := MustNew(MD5)
	assert.Equal(t, "8b1a9953c4611296a827abf8c47804d7", md5h.Sum([]byte("Hello")))

	sha := MustNew(SHA256)
	assert.Equal(t, "185f8db32271fe25f561a6fc938b2e264306ec304eda518007d1764826381969", sha.Sum([]byte("Hello")))
}

func TestNew_DefaultsToMD5(t *testing.T) {
	h, err := New("")
	require.NoError(t, err)
	assert.Equal(t, MD5, h.Algorithm())
}

func TestNew_CaseInsensitive(t *testing.T) {
	h, err := New("BLAKE3")
	require.NoError(t, err)
	assert.Equal(t, BLAKE3, h.Algorithm())
}

func TestNew_Unsupported(t *testing.T) {
	_, err := New("crc32")
	require.Error(t, err)
	assert.Panics(t, func() { MustNew("crc32") })
}

func TestSumReaderMatchesSum(t *testing.T) {
	for _, algo := range Algorithms() {
		t.Run(string(algo), func(t *testing.T) {
			h := MustNew(algo)
			data := bytes.Repeat([]byte("dittofiles"), 1000)

			streamed, err := h.SumReader(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, h.Sum(data), streamed)
		})
	}
}

func TestSuffix(t *testing.T) {
	assert.Equal(t, "4d7", Suffix("8b1a99d7c47804d7", 3))
	assert.Equal(t, "abc", Suffix("abc", 6))
	assert.Equal(t, "abc", Suffix("abc", 0))
}

func TestSum_Properties(t *testing.T) {
	for _, algo := range Algorithms() {
		t.Run(string(algo), func(t *testing.T) {
			h := MustNew(algo)
			rapid.Check(t, func(rt *rapid.T) {
				a := rapid.SliceOf(rapid.Byte()).Draw(rt, "a")
				b := rapid.SliceOf(rapid.Byte()).Draw(rt, "b")

				if h.Sum(a) != h.Sum(append([]byte(nil), a...)) {
					rt.Fatalf("digest not deterministic")
				}
				if !bytes.Equal(a, b) && h.Sum(a) == h.Sum(b) {
					rt.Fatalf("distinct inputs %x and %x collide", a, b)
				}
			})
		})
	}
}
