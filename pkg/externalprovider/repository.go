package externalprovider

import (
	"fmt"
	"sync"
	"time"
)

// Repository manages provider configurations and OAuth2 flow state.
type Repository interface {
	GetProvider(providerID string) (*Provider, error)
	GetEnabledProviders() ([]*Provider, error)
	CreateProvider(provider *Provider) error

	StoreState(state *State) error
	// ConsumeState retrieves and deletes a state in one step. A missing or
	// expired state is an error; states are single use.
	ConsumeState(stateValue string) (*State, error)
	CleanupExpiredStates() error
}

// InMemRepository implements Repository using in-memory storage. Provider
// configuration is static per deployment, so in-memory is the default.
type InMemRepository struct {
	mutex     sync.RWMutex
	providers map[string]*Provider
	states    map[string]*State
}

// NewInMemRepository creates a new in-memory provider repository.
func NewInMemRepository() *InMemRepository {
	return &InMemRepository{
		providers: make(map[string]*Provider),
		states:    make(map[string]*State),
	}
}

// GetProvider retrieves a provider by ID.
func (r *InMemRepository) GetProvider(providerID string) (*Provider, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	provider, exists := r.providers[providerID]
	if !exists {
		return nil, fmt.Errorf("provider not found: %s", providerID)
	}

	providerCopy := *provider
	return &providerCopy, nil
}

// GetEnabledProviders returns all enabled providers.
func (r *InMemRepository) GetEnabledProviders() ([]*Provider, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var result []*Provider
	for _, provider := range r.providers {
		if provider.Enabled {
			providerCopy := *provider
			result = append(result, &providerCopy)
		}
	}
	return result, nil
}

// CreateProvider registers a provider configuration.
func (r *InMemRepository) CreateProvider(provider *Provider) error {
	if provider == nil {
		return fmt.Errorf("provider cannot be nil")
	}
	if err := provider.ValidateConfig(); err != nil {
		return fmt.Errorf("invalid provider configuration: %w", err)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.providers[provider.ID]; exists {
		return fmt.Errorf("provider already exists: %s", provider.ID)
	}

	providerCopy := *provider
	r.providers[provider.ID] = &providerCopy
	return nil
}

// StoreState stores an OAuth2 state for later validation.
func (r *InMemRepository) StoreState(state *State) error {
	if state == nil || state.Value == "" {
		return fmt.Errorf("state value cannot be empty")
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	stateCopy := *state
	r.states[state.Value] = &stateCopy
	return nil
}

// ConsumeState retrieves and deletes a stored state.
func (r *InMemRepository) ConsumeState(stateValue string) (*State, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	state, exists := r.states[stateValue]
	if !exists {
		return nil, fmt.Errorf("state not found: %s", stateValue)
	}
	delete(r.states, stateValue)

	if time.Now().Unix() > state.ExpiresAt {
		return nil, fmt.Errorf("state expired: %s", stateValue)
	}

	stateCopy := *state
	return &stateCopy, nil
}

// CleanupExpiredStates removes expired OAuth2 states.
func (r *InMemRepository) CleanupExpiredStates() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := time.Now().Unix()
	for stateValue, state := range r.states {
		if now > state.ExpiresAt {
			delete(r.states, stateValue)
		}
	}
	return nil
}
