package credentials

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jonwraymond/tokenauth/auth"
)

// Factory creates a repository from driver configuration.
type Factory func(cfg map[string]any) (auth.CredentialRepository, error)

// Registry maps driver names to repository factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name.
func (r *Registry) Register(name string, factory Factory) error {
	name = strings.TrimSpace(name)
	if name == "" || factory == nil {
		return errors.New("invalid credentials driver registration")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("credentials driver %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Create instantiates the repository registered under name.
func (r *Registry) Create(name string, cfg map[string]any) (auth.CredentialRepository, error) {
	r.mu.RLock()
	factory, ok := r.factories[strings.TrimSpace(name)]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("credentials driver %q is not registered", name)
	}
	return factory(cfg)
}

// List returns registered driver names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry holds the built-in drivers "sample" and "memory".
var DefaultRegistry = NewRegistry()

func init() {
	_ = DefaultRegistry.Register("sample", func(cfg map[string]any) (auth.CredentialRepository, error) {
		roles, err := stringSlice(cfg["roles"])
		if err != nil {
			return nil, fmt.Errorf("sample: roles: %w", err)
		}
		return NewSample(roles...), nil
	})

	_ = DefaultRegistry.Register("memory", func(cfg map[string]any) (auth.CredentialRepository, error) {
		raw, ok := cfg["users"].([]any)
		if !ok && cfg["users"] != nil {
			return nil, fmt.Errorf("memory: users must be a list, got %T", cfg["users"])
		}

		users := make([]User, 0, len(raw))
		for i, entry := range raw {
			m, ok := entry.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("memory: users[%d] must be a mapping, got %T", i, entry)
			}
			u := User{}
			u.Username, _ = m["username"].(string)
			u.PasswordHash, _ = m["password_hash"].(string)
			u.UserID, _ = m["user_id"].(string)
			roles, err := stringSlice(m["roles"])
			if err != nil {
				return nil, fmt.Errorf("memory: users[%d].roles: %w", i, err)
			}
			u.Roles = roles
			users = append(users, u)
		}
		return NewMemory(users...)
	})
}

func stringSlice(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return t, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("expected string, got %T", e)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected list, got %T", v)
	}
}
