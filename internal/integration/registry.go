package integration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrAlreadyConfigured is returned when adding an account whose device is
// already registered.
var ErrAlreadyConfigured = errors.New("already configured")

// Registry holds at most one Integration per receipt line key.
type Registry struct {
	env Env

	mu           sync.Mutex
	integrations map[string]*Integration
}

func NewRegistry(env Env) *Registry {
	return &Registry{
		env:          env,
		integrations: map[string]*Integration{},
	}
}

// Add validates creds, rejects duplicates and sets up a new integration.
func (r *Registry) Add(ctx context.Context, creds Credentials, options Options) (*Integration, error) {
	info, err := ValidateInput(ctx, r.env, creds)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	_, exists := r.integrations[info.ReceiptLineKey]
	r.mu.Unlock()
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyConfigured, info.ReceiptLineKey)
	}

	integration, err := Setup(ctx, r.env, creds, options)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.integrations[info.ReceiptLineKey]; exists {
		_ = integration.Unload()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyConfigured, info.ReceiptLineKey)
	}
	r.integrations[info.ReceiptLineKey] = integration
	return integration, nil
}

func (r *Registry) Get(key string) (*Integration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	integration, ok := r.integrations[key]
	return integration, ok
}

// Keys returns the registered receipt line keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.integrations))
	for k := range r.integrations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Remove unloads and forgets the integration registered under key.
func (r *Registry) Remove(key string) error {
	r.mu.Lock()
	integration, ok := r.integrations[key]
	delete(r.integrations, key)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return integration.Unload()
}

// Close unloads every integration.
func (r *Registry) Close() error {
	var errs []error
	for _, key := range r.Keys() {
		errs = append(errs, r.Remove(key))
	}
	return errors.Join(errs...)
}
