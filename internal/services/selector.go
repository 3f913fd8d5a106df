package services

import "math/rand/v2"

// Selector picks which waiting candidate a requester is paired with.
// Pick receives the number of candidates (always > 0, ordered oldest
// first) and returns an index into that list.
type Selector interface {
	Pick(n int) int
}

// RandomSelector picks uniformly at random
type RandomSelector struct{}

func (RandomSelector) Pick(n int) int { return rand.IntN(n) }

// FirstSelector always picks the longest-waiting candidate
type FirstSelector struct{}

func (FirstSelector) Pick(int) int { return 0 }

// NewSelector returns the selector for a configured strategy name
func NewSelector(strategy string) Selector {
	if strategy == "first" {
		return FirstSelector{}
	}
	return RandomSelector{}
}
