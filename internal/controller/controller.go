// Package controller drives the fetch cycle behind each dashboard screen.
//
// A controller is owned by one screen instance. Load moves it from Idle or a
// settled state into Loading, asks the token provider for a device-management
// token, runs the screen's fetch and settles into Loaded or Failed. Errors never
// escape Load; they are reduced to the message carried by Failed.
package controller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/intuneview/intuneview/internal/auth"
	"github.com/intuneview/intuneview/internal/graph"
	"github.com/intuneview/intuneview/internal/logging"
	"github.com/intuneview/intuneview/internal/metrics"
)

// GraphReader is the subset of the Graph client the controllers use.
type GraphReader interface {
	GetUserProfile(ctx context.Context, token string) (*graph.Record, error)
	List(ctx context.Context, token string, resource graph.Resource) ([]*graph.Record, error)
}

// FetchFunc runs the reads of one fetch cycle with an acquired bearer token.
type FetchFunc[T any] func(ctx context.Context, token string) (T, error)

type Option func(*options)

type options struct {
	logger *slog.Logger
	scopes []string
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithScopes overrides the permission set requested for each cycle.
func WithScopes(scopes ...string) Option {
	return func(o *options) {
		if len(scopes) > 0 {
			o.scopes = append([]string(nil), scopes...)
		}
	}
}

func buildOptions(screen string, opts []Option) options {
	o := options{
		logger: slog.Default(),
		scopes: auth.DeviceManagementScopes,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = logging.Component(o.logger, "controller").With("screen", screen)
	return o
}

type Controller[T any] struct {
	screen string
	tokens auth.TokenProvider
	fetch  FetchFunc[T]
	scopes []string
	logger *slog.Logger

	mu         sync.Mutex
	generation uint64
	state      State
	onReset    func()
}

func New[T any](screen string, tokens auth.TokenProvider, fetch FetchFunc[T], opts ...Option) *Controller[T] {
	o := buildOptions(screen, opts)
	return &Controller[T]{
		screen: screen,
		tokens: tokens,
		fetch:  fetch,
		scopes: o.scopes,
		logger: o.logger,
		state:  Idle{},
	}
}

func (c *Controller[T]) Screen() string {
	return c.screen
}

// State returns the current view state.
func (c *Controller[T]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Value returns the loaded value when the controller is in Loaded.
func (c *Controller[T]) Value() (T, bool) {
	loaded, ok := c.State().(Loaded[T])
	return loaded.Value, ok
}

// Load runs one fetch cycle for the active account of authState and returns the
// state it settled in. Without an account the controller stays Idle and nothing is
// requested. A cycle overtaken by a later Load is discarded and the newer state is
// returned.
func (c *Controller[T]) Load(ctx context.Context, authState auth.State) State {
	account, ok := authState.Active()
	if !ok {
		c.mu.Lock()
		c.generation++
		c.state = Idle{}
		if c.onReset != nil {
			c.onReset()
		}
		c.mu.Unlock()
		return Idle{}
	}

	gen := c.begin()
	start := time.Now()

	token, err := c.tokens.AcquireToken(ctx, c.scopes, account)
	if err != nil {
		return c.settle(gen, start, Failed{Message: err.Error()})
	}

	value, err := c.fetch(ctx, token.AccessToken)
	if err != nil {
		return c.settle(gen, start, Failed{Message: err.Error()})
	}
	return c.settle(gen, start, Loaded[T]{Value: value})
}

func (c *Controller[T]) begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.state = Loading{}
	if c.onReset != nil {
		c.onReset()
	}
	return c.generation
}

func (c *Controller[T]) settle(gen uint64, start time.Time, next State) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		metrics.StaleCyclesTotal.WithLabelValues(c.screen).Inc()
		c.logger.Debug("discarding stale fetch cycle", "generation", gen, "current_generation", c.generation, "state", next.Name())
		return c.state
	}

	c.state = next
	metrics.FetchCyclesTotal.WithLabelValues(c.screen, next.Name()).Inc()
	metrics.FetchCycleDuration.WithLabelValues(c.screen).Observe(time.Since(start).Seconds())
	if failed, ok := next.(Failed); ok {
		c.logger.Warn("fetch cycle failed", "err", failed.Message)
	}
	return next
}
