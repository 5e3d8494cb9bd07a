package platform

import (
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
)

// ErrUnknownPlatform is returned by Registry.Client for names without a factory.
var ErrUnknownPlatform = errors.New("unknown platform")

// Factory builds a client from its config.
type Factory func(cfg Config) (Client, error)

// Registry maps platform names to factories and caches built clients.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	configs   map[string]Config
	clients   map[string]Client
}

func NewRegistry() *Registry {
	return &Registry{
		factories: map[string]Factory{},
		configs:   map[string]Config{},
		clients:   map[string]Client{},
	}
}

// Register installs a factory and its config under name (upsert).
func (r *Registry) Register(name string, cfg Config, f Factory) {
	name = Normalize(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
	r.configs[name] = cfg
	delete(r.clients, name)
}

// Use installs an already-built client (tests, custom integrations).
func (r *Registry) Use(c Client) {
	name := Normalize(c.Name())
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = c
}

// Client returns the client for name, building and caching it on first use.
// Clients with a MinInterval are wrapped with a rate limiter.
func (r *Registry) Client(name string) (Client, error) {
	name = Normalize(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[name]; ok {
		return c, nil
	}
	f, ok := r.factories[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownPlatform, "%q", name)
	}
	cfg := r.configs[name]
	c, err := f(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "init %s client", name)
	}
	if cfg.MinInterval > 0 {
		c = Limited(c, cfg.MinInterval)
	}
	r.clients[name] = c
	return c, nil
}

// Names lists every registered platform, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := map[string]struct{}{}
	for n := range r.factories {
		set[n] = struct{}{}
	}
	for n := range r.clients {
		set[n] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
