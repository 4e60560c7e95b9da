// Package client selects the backend the application talks to: the real
// remote service when its credentials are configured and it can be reached,
// otherwise the local shim built from the auth, collection and store
// packages.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/stevemurr/eden-shim/auth"
	"github.com/stevemurr/eden-shim/collection"
	"github.com/stevemurr/eden-shim/config"
	"github.com/stevemurr/eden-shim/query"
	"github.com/stevemurr/eden-shim/store"
)

// ErrUnconfigured reports missing or placeholder backend credentials.
var ErrUnconfigured = errors.New("client: backend credentials are not configured")

// Authenticator is the session API the application uses. *auth.Manager
// implements it.
type Authenticator interface {
	GetSession(ctx context.Context) (*auth.Session, error)
	OnAuthStateChange(cb auth.Callback) auth.Subscription
	SignIn(ctx context.Context, email, password string) (*auth.User, *auth.Session, error)
	SignUp(ctx context.Context, email, password string) (*auth.User, *auth.Session, error)
	SignOut(ctx context.Context) error
}

// Backend is what a Dialer produces for the real remote service.
type Backend struct {
	Auth Authenticator
	Exec query.Executor
}

// Dialer builds a client for the real backend from its URL and key.
type Dialer func(url, key string) (*Backend, error)

// Mode names the backend in use.
type Mode string

const (
	ModeRemote Mode = "remote"
	ModeLocal  Mode = "local"
)

type Client struct {
	mode  Mode
	auth  Authenticator
	exec  query.Executor
	blobs store.Store
}

type options struct {
	log    *zap.Logger
	dialer Dialer
	blobs  store.Store
}

type Option func(*options)

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithRemote sets how the real backend is reached when credentials exist.
func WithRemote(d Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithStore makes the local shim use blobs instead of the configured backend.
func WithStore(blobs store.Store) Option {
	return func(o *options) { o.blobs = blobs }
}

// Open returns a Client. Missing credentials, a missing dialer, or a dialer
// that fails or panics all fall back to the local shim; only failing to open
// the local blob store is an error.
func Open(cfg *config.Config, opts ...Option) (*Client, error) {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.Backend.Configured() {
		b, err := dial(o.dialer, cfg.Backend)
		if err == nil {
			o.log.Info("using remote backend", zap.String("url", cfg.Backend.URL))
			return &Client{mode: ModeRemote, auth: b.Auth, exec: b.Exec}, nil
		}
		o.log.Warn("remote backend init failed, falling back to local shim", zap.Error(err))
	} else {
		o.log.Info("running in offline demo mode", zap.Error(ErrUnconfigured))
	}
	return openLocal(cfg, o)
}

func dial(d Dialer, cfg config.BackendConfig) (b *Backend, err error) {
	if d == nil {
		return nil, errors.New("no remote dialer available")
	}
	defer func() {
		if r := recover(); r != nil {
			b, err = nil, fmt.Errorf("remote dialer panicked: %v", r)
		}
	}()
	b, err = d(cfg.URL, cfg.AnonKey)
	if err != nil {
		return nil, err
	}
	if b == nil || b.Auth == nil || b.Exec == nil {
		return nil, errors.New("remote dialer returned an incomplete backend")
	}
	return b, nil
}

func openLocal(cfg *config.Config, o options) (*Client, error) {
	blobs := o.blobs
	if blobs == nil {
		var err error
		blobs, err = store.New(cfg.Store.Backend, cfg.Store.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open local store: %w", err)
		}
	}

	authOpts := []auth.Option{
		auth.WithLogger(o.log.Named("auth")),
		auth.WithLatency(cfg.Latency.SignIn, cfg.Latency.SignUp),
	}
	if cfg.Auth.DeriveUserIDs {
		authOpts = append(authOpts, auth.WithDerivedIdentities())
	}
	o.log.Debug("local shim ready",
		zap.String("store", cfg.Store.Backend),
		zap.String("data", cfg.Store.DataDir))
	return &Client{
		mode: ModeLocal,
		auth: auth.New(blobs, authOpts...),
		exec: collection.New(blobs,
			collection.WithLogger(o.log.Named("collection")),
			collection.WithLatency(cfg.Latency.Data)),
		blobs: blobs,
	}, nil
}

func (c *Client) Mode() Mode { return c.mode }

func (c *Client) Auth() Authenticator { return c.auth }

// From starts a query against the named collection.
func (c *Client) From(name string) *query.Builder {
	return query.From(c.exec, name)
}

// Collections lists the collections that hold data. Only the local shim can
// enumerate them.
func (c *Client) Collections(ctx context.Context) ([]string, error) {
	lister, ok := c.exec.(interface {
		Names(ctx context.Context) ([]string, error)
	})
	if !ok {
		return nil, fmt.Errorf("collections cannot be listed in %s mode", c.mode)
	}
	return lister.Names(ctx)
}

// Close releases the local blob store if it holds resources.
func (c *Client) Close() error {
	if closer, ok := c.blobs.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
