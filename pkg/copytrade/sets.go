package copytrade

import (
	"sort"
	"sync"
)

// CoinSet is a small set of coin symbols. Mutations come from the single
// fill-handling goroutine; the lock only guards concurrent status reads.
type CoinSet struct {
	mu    sync.RWMutex
	coins map[string]struct{}
}

// NewCoinSet returns a set seeded with coins.
func NewCoinSet(coins ...string) *CoinSet {
	s := &CoinSet{coins: make(map[string]struct{}, len(coins))}
	for _, c := range coins {
		s.coins[c] = struct{}{}
	}
	return s
}

func (s *CoinSet) Add(coin string) {
	s.mu.Lock()
	s.coins[coin] = struct{}{}
	s.mu.Unlock()
}

// Remove deletes coin and reports whether it was present.
func (s *CoinSet) Remove(coin string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.coins[coin]
	delete(s.coins, coin)
	return ok
}

func (s *CoinSet) Contains(coin string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.coins[coin]
	return ok
}

func (s *CoinSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.coins)
}

// List returns the coins sorted.
func (s *CoinSet) List() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.coins))
	for c := range s.coins {
		out = append(out, c)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}
