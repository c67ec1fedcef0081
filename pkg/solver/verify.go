package solver

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrSolutionInvalid = errors.New("digest is larger than target")
)

// Digest computes hash(prefix + decimal(nonce))
func Digest(alg *Algorithm, prefix string, nonce uint64) []byte {
	hasher := alg.New()
	_, _ = hasher.Write([]byte(prefix))
	_, _ = hasher.Write(strconv.AppendUint(nil, nonce, 10))
	return hasher.Sum(nil)
}

// Verify is the single-hash check a server runs against a submitted nonce
func Verify(alg *Algorithm, prefix string, target Target, nonce uint64) error {
	if size := alg.Size(); len(target) != size {
		return fmt.Errorf("%w: %d bytes target for %d bytes %s digest", ErrTargetLengthMismatch, len(target), size, alg.Name)
	}

	if !Meets(Digest(alg, prefix, nonce), target) {
		return ErrSolutionInvalid
	}

	return nil
}

// VerifyString parses a decimal nonce as returned by SolveChallenge
func VerifyString(alg *Algorithm, prefix string, targetHex string, nonce string) error {
	target, err := ParseTarget(targetHex)
	if err != nil {
		return err
	}

	n, err := strconv.ParseUint(nonce, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad nonce %q", ErrSolutionInvalid, nonce)
	}

	return Verify(alg, prefix, target, n)
}
