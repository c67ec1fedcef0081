package solver

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"math/bits"
)

var (
	ErrInvalidTargetEncoding = errors.New("target is not a valid hex string")
	ErrTargetLengthMismatch  = errors.New("target length does not match digest length")
	errInvalidDifficulty     = errors.New("difficulty is out of range")
)

// Target is the big-endian encoding of the largest acceptable digest
type Target []byte

// ParseTarget accepts both upper and lower case hex digits
func ParseTarget(s string) (Target, error) {
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTargetEncoding, err)
	}

	return Target(data), nil
}

// TargetFromDifficulty builds a target of size bytes whose first bits are zero and
// the rest are ones, i.e. a digest must have at least that many leading zero bits.
func TargetFromDifficulty(difficulty int, size int) (Target, error) {
	if difficulty < 0 || difficulty > size*8 {
		return nil, fmt.Errorf("%w: %d bits for %d bytes", errInvalidDifficulty, difficulty, size)
	}

	t := Target(bytes.Repeat([]byte{0xff}, size))

	full, rest := difficulty/8, difficulty%8
	for i := 0; i < full; i++ {
		t[i] = 0
	}

	if rest > 0 {
		t[full] = 0xff >> rest
	}

	return t, nil
}

func (t Target) String() string {
	return hex.EncodeToString(t)
}

func (t Target) LeadingZeroBits() int {
	total := 0
	for _, b := range t {
		if b == 0 {
			total += 8
			continue
		}
		total += bits.LeadingZeros8(b)
		break
	}
	return total
}

// Meets reports whether digest <= target, both read as big-endian unsigned
// integers of the same byte length. Every byte takes part in the comparison,
// including the last one.
func Meets(digest, target []byte) bool {
	if len(digest) != len(target) {
		return false
	}

	for i := 0; i < len(digest); i++ {
		if digest[i] > target[i] {
			return false
		} else if digest[i] < target[i] {
			return true
		}
	}

	// equal values
	return true
}
