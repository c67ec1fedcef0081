package solver

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"
	"sort"
	"sync"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

const (
	AlgorithmSHA256    = "sha256"
	AlgorithmBlake2b   = "blake2b-256"
	AlgorithmSHA3      = "sha3-256"
	DefaultAlgorithmID = AlgorithmSHA256
)

var (
	ErrUnknownAlgorithm = errors.New("unknown digest algorithm")
	errDuplicateAlgo    = errors.New("digest algorithm is already registered")
)

// Algorithm is a named digest function. The digest length is whatever New().Size() reports.
type Algorithm struct {
	Name string
	New  func() hash.Hash
}

func (a *Algorithm) Size() int {
	return a.New().Size()
}

func (a *Algorithm) String() string {
	return a.Name
}

func newBlake2b256() hash.Hash {
	// only fails for keys longer than 64 bytes
	h, _ := blake2b.New256(nil)
	return h
}

var (
	SHA256  = &Algorithm{Name: AlgorithmSHA256, New: sha256.New}
	Blake2b = &Algorithm{Name: AlgorithmBlake2b, New: newBlake2b256}
	SHA3    = &Algorithm{Name: AlgorithmSHA3, New: func() hash.Hash { return sha3.New256() }}
)

var (
	algorithms   = map[string]*Algorithm{}
	algorithmsMu sync.RWMutex
)

func init() {
	for _, a := range []*Algorithm{SHA256, Blake2b, SHA3} {
		if err := RegisterAlgorithm(a); err != nil {
			panic(err)
		}
	}
}

func RegisterAlgorithm(a *Algorithm) error {
	if a == nil || len(a.Name) == 0 || a.New == nil {
		return fmt.Errorf("%w: incomplete algorithm", ErrUnknownAlgorithm)
	}

	algorithmsMu.Lock()
	defer algorithmsMu.Unlock()

	if _, ok := algorithms[a.Name]; ok {
		return fmt.Errorf("%w: %s", errDuplicateAlgo, a.Name)
	}

	algorithms[a.Name] = a
	return nil
}

// LookupAlgorithm returns the default algorithm for an empty name
func LookupAlgorithm(name string) (*Algorithm, error) {
	if len(name) == 0 {
		name = DefaultAlgorithmID
	}

	algorithmsMu.RLock()
	defer algorithmsMu.RUnlock()

	a, ok := algorithms[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}

	return a, nil
}

func AlgorithmNames() []string {
	algorithmsMu.RLock()
	defer algorithmsMu.RUnlock()

	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
