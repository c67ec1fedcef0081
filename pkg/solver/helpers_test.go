package solver

import (
	"hash"
	"strings"
)

// stubHash fills the whole digest with a single byte computed from the input
type stubHash struct {
	data []byte
	size int
	fn   func([]byte) byte
}

func (h *stubHash) Write(p []byte) (int, error) {
	h.data = append(h.data, p...)
	return len(p), nil
}

func (h *stubHash) Sum(b []byte) []byte {
	v := h.fn(h.data)
	for i := 0; i < h.size; i++ {
		b = append(b, v)
	}
	return b
}

func (h *stubHash) Reset()         { h.data = h.data[:0] }
func (h *stubHash) Size() int      { return h.size }
func (h *stubHash) BlockSize() int { return 1 }

func stubAlgorithm(name string, fn func([]byte) byte) *Algorithm {
	return &Algorithm{
		Name: name,
		New:  func() hash.Hash { return &stubHash{size: 32, fn: fn} },
	}
}

// hash(s) = len(s) mod 256
func lengthHash(s []byte) byte {
	return byte(len(s) % 256)
}

// hash(s) = 255 - (sum of bytes mod 256), decreasing while the last digit grows
func inverseSumHash(s []byte) byte {
	var sum byte
	for _, c := range s {
		sum += c
	}
	return 255 - sum
}

func repeatHex(b string, n int) string {
	return strings.Repeat(b, n)
}

var (
	maxTargetHex  = repeatHex("ff", 32)
	zeroTargetHex = repeatHex("00", 32)
)
