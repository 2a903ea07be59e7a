package dist

import (
	"math/rand"
	"sync"
)

// Source is a seeded random source shared by distributions and perturbation
// managers. Draws are serialized so a Source may be shared between holders.
type Source struct {
	mu   sync.Mutex
	rand *rand.Rand
}

func NewSource(seed int64) *Source {
	return &Source{rand: rand.New(rand.NewSource(seed))}
}

// Uniform returns a value in the open interval (0, 1).
func (s *Source) Uniform() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		u := s.rand.Float64()
		if u > 0 {
			return u
		}
	}
}

func (s *Source) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.Float64()
}

func (s *Source) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.Intn(n)
}

func (s *Source) NormFloat64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.NormFloat64()
}

// Int63 draws a child seed.
func (s *Source) Int63() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.Int63()
}
