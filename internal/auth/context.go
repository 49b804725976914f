package auth

import (
	"context"
	"log/slog"
	"sync"

	"github.com/marketlens/marketlens/internal/models"
)

// Subscriber receives the current profile (nil when signed out) at subscribe
// time and on every later sign-in/sign-out. Callbacks run synchronously.
type Subscriber func(profile *models.UserProfile)

// Context owns the auth state for one session: the selected backend, the
// current profile, and the subscriber list. It replaces the module-level
// mutable auth context of the original client with an explicit
// Init/Teardown lifecycle.
//
// Published profiles are replaced, never modified in place, so the pointer
// returned by Current may be read and marshaled without holding any lock.
type Context struct {
	backend Backend
	logger  *slog.Logger

	// opMu serializes backend calls; the backends keep their own session
	// state and are not safe for concurrent mutation.
	opMu sync.Mutex

	mu          sync.Mutex
	subscribers map[int]Subscriber
	nextSubID   int
	current     *models.UserProfile
}

func NewContext(backend Backend, logger *slog.Logger) *Context {
	return &Context{
		backend:     backend,
		logger:      logger,
		subscribers: make(map[int]Subscriber),
	}
}

// Init restores any persisted session. A missing session is not an error.
func (c *Context) Init(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	profile, err := c.backend.LoadProfile(ctx)
	if err != nil {
		if ae, ok := AsAuthError(err); ok && ae.Code == CodeNoUser {
			c.setCurrent(nil)
			return nil
		}
		return err
	}
	c.setCurrent(profile)
	return nil
}

// Teardown drops all subscribers and the in-memory session.
func (c *Context) Teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = make(map[int]Subscriber)
	c.current = nil
}

func (c *Context) Mode() Mode { return c.backend.Mode() }

// Current returns the signed-in profile, or nil.
func (c *Context) Current() *models.UserProfile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Subscribe registers a callback, fires it immediately with the current
// state, and returns a disposer.
func (c *Context) Subscribe(fn Subscriber) func() {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn
	current := c.current
	c.mu.Unlock()

	fn(current)

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subscribers, id)
	}
}

func (c *Context) Signup(ctx context.Context, fields SignupFields) (*models.UserProfile, error) {
	c.opMu.Lock()
	profile, err := c.backend.Signup(ctx, fields)
	if err != nil {
		c.opMu.Unlock()
		return nil, err
	}
	c.setCurrent(profile)
	c.opMu.Unlock()
	c.notify(profile)
	return profile, nil
}

func (c *Context) Login(ctx context.Context, email, password string, rememberMe bool) (*models.UserProfile, error) {
	c.opMu.Lock()
	profile, err := c.backend.Login(ctx, email, password, rememberMe)
	if err != nil {
		c.opMu.Unlock()
		return nil, err
	}
	c.setCurrent(profile)
	c.opMu.Unlock()
	c.notify(profile)
	return profile, nil
}

// Logout clears the session and notifies subscribers even when the backend
// sign-out call fails.
func (c *Context) Logout(ctx context.Context) error {
	c.opMu.Lock()
	err := c.backend.Logout(ctx)
	c.setCurrent(nil)
	c.opMu.Unlock()
	c.notify(nil)
	return err
}

func (c *Context) UpdateProfile(ctx context.Context, patch ProfilePatch) (*models.UserProfile, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	profile, err := c.backend.UpdateProfile(ctx, patch)
	if err != nil {
		return nil, err
	}
	c.setCurrent(profile)
	return profile, nil
}

func (c *Context) LoadProfile(ctx context.Context) (*models.UserProfile, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	profile, err := c.backend.LoadProfile(ctx)
	if err != nil {
		return nil, err
	}
	c.setCurrent(profile)
	return profile, nil
}

func (c *Context) ResetPassword(ctx context.Context, email string) error {
	return c.backend.ResetPassword(ctx, email)
}

func (c *Context) setCurrent(profile *models.UserProfile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = profile
}

func (c *Context) notify(profile *models.UserProfile) {
	c.mu.Lock()
	subs := make([]Subscriber, 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(profile)
	}
}
