package github

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/geocoder89/devhub/internal/observability"
)

var ErrCircuitOpen = errors.New("circuit breaker open")

type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

type ReposFetcher interface {
	Repos(ctx context.Context, username string) ([]Repo, error)
}

type BreakerConfig struct {
	Timeout          time.Duration // hard timeout per lookup
	FailureThreshold int           // consecutive failures to open circuit
	Cooldown         time.Duration // how long to stay open before half-open
	HalfOpenMaxCalls int           // trial calls allowed in half-open
}

// ProtectedClient fails fast while GitHub is down. Only ErrUnavailable
// counts as a failure; an unknown username says nothing about GitHub's health.
type ProtectedClient struct {
	inner ReposFetcher
	cfg   BreakerConfig
	prom  *observability.Prom
	now   func() time.Time

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	openedAt            time.Time
	halfOpenInFlight    int
}

func NewProtectedClient(inner ReposFetcher, cfg BreakerConfig, prom *observability.Prom) *ProtectedClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}

	return &ProtectedClient{
		inner: inner,
		cfg:   cfg,
		prom:  prom,
		now:   time.Now,
		state: StateClosed,
	}
}

func (c *ProtectedClient) Repos(ctx context.Context, username string) ([]Repo, error) {
	if !c.allowRequest() {
		c.record("circuit_open")
		return nil, ErrCircuitOpen
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	repos, err := c.inner.Repos(callCtx, username)

	c.afterRequest(err)

	switch {
	case err == nil:
		c.record("ok")
	case errors.Is(err, ErrNotFound):
		c.record("not_found")
	default:
		c.record("unavailable")
	}
	return repos, err
}

func (c *ProtectedClient) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *ProtectedClient) allowRequest() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateClosed:
		return true
	case StateOpen:
		if c.now().Sub(c.openedAt) >= c.cfg.Cooldown {
			c.setState(StateHalfOpen)
			c.halfOpenInFlight = 1
			return true
		}
		return false
	case StateHalfOpen:
		if c.halfOpenInFlight >= c.cfg.HalfOpenMaxCalls {
			return false
		}
		c.halfOpenInFlight++
		return true
	default:
		return true
	}
}

func (c *ProtectedClient) afterRequest(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateHalfOpen && c.halfOpenInFlight > 0 {
		c.halfOpenInFlight--
	}

	if err == nil || errors.Is(err, ErrNotFound) {
		c.consecutiveFailures = 0
		c.setState(StateClosed)
		return
	}

	c.consecutiveFailures++

	// a failed trial call reopens immediately
	if c.state == StateHalfOpen || c.consecutiveFailures >= c.cfg.FailureThreshold {
		c.setState(StateOpen)
		c.openedAt = c.now()
	}
}

// setState must be called with c.mu held.
func (c *ProtectedClient) setState(s State) {
	c.state = s
	if c.prom == nil {
		return
	}

	switch s {
	case StateClosed:
		c.prom.GitHubBreakerState.Set(0)
	case StateHalfOpen:
		c.prom.GitHubBreakerState.Set(1)
	case StateOpen:
		c.prom.GitHubBreakerState.Set(2)
	}
}

func (c *ProtectedClient) record(result string) {
	if c.prom != nil {
		c.prom.ObserveGitHub(result)
	}
}
