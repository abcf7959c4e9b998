package useragent

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync/atomic"
)

// DefaultPool holds desktop browser User-Agents. The search page only embeds
// ytInitialData in its desktop rendering, so mobile agents are deliberately absent.
var DefaultPool = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/132.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.1 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36 Edg/131.0.0.0",
}

// Strategy selects how Next picks an agent.
type Strategy string

const (
	Sequential Strategy = "sequential"
	Random     Strategy = "random"
)

// ParseStrategy validates a strategy name from configuration. Empty means Sequential.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", Sequential:
		return Sequential, nil
	case Random:
		return Random, nil
	}
	return "", fmt.Errorf("useragent: unknown strategy %q", s)
}

// Pool is a fixed set of User-Agents. It is safe for concurrent use.
type Pool struct {
	uas      []string
	strategy Strategy
	counter  atomic.Uint64
}

// NewPool creates a new User-Agent pool. If uas is empty it falls back to DefaultPool.
func NewPool(uas []string, strategy Strategy) *Pool {
	if len(uas) == 0 {
		uas = DefaultPool
	}
	if strategy == "" {
		strategy = Sequential
	}
	copied := make([]string, len(uas))
	copy(copied, uas)
	return &Pool{
		uas:      copied,
		strategy: strategy,
	}
}

// Next returns an agent according to the pool's strategy.
func (p *Pool) Next() string {
	if p.strategy == Random {
		return p.random()
	}
	return p.sequential()
}

func (p *Pool) sequential() string {
	idx := p.counter.Add(1) - 1
	return p.uas[idx%uint64(len(p.uas))]
}

func (p *Pool) random() string {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(p.uas))))
	if err != nil {
		return p.sequential()
	}
	return p.uas[n.Int64()]
}

// Len returns the number of agents in the pool.
func (p *Pool) Len() int {
	return len(p.uas)
}
