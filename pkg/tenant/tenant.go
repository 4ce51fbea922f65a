package tenant

import (
	"context"
	"strconv"
	"strings"
	"sync"
)

// Tenant is a company as seen by request-scoped code.
type Tenant struct {
	ID     int64  `json:"id" yaml:"id"`
	Abbr   string `json:"abbr" yaml:"abbr"`
	Name   string `json:"name" yaml:"name"`
	Active bool   `json:"active" yaml:"active"`
}

// Provider loads tenant information from a data source.
type Provider interface {
	// GetByIdentifier retrieves a tenant by abbreviation or numeric id.
	// Returns ErrTenantNotFound if no tenant matches the identifier.
	GetByIdentifier(ctx context.Context, identifier string) (*Tenant, error)
}

// StaticProvider serves a fixed set of tenants, e.g. loaded from a file.
type StaticProvider struct {
	mu     sync.RWMutex
	byAbbr map[string]*Tenant
	byID   map[int64]*Tenant
}

// NewStaticProvider indexes tenants by lowercase abbreviation and id.
func NewStaticProvider(tenants ...Tenant) *StaticProvider {
	p := &StaticProvider{
		byAbbr: make(map[string]*Tenant, len(tenants)),
		byID:   make(map[int64]*Tenant, len(tenants)),
	}
	for _, t := range tenants {
		p.Add(t)
	}
	return p
}

// Add registers or replaces a tenant
func (p *StaticProvider) Add(t Tenant) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byAbbr[strings.ToLower(t.Abbr)] = &t
	p.byID[t.ID] = &t
}

// GetByIdentifier implements Provider
func (p *StaticProvider) GetByIdentifier(_ context.Context, identifier string) (*Tenant, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ErrInvalidIdentifier
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if t, ok := p.byAbbr[strings.ToLower(identifier)]; ok {
		return t, nil
	}
	if id, err := strconv.ParseInt(identifier, 10, 64); err == nil {
		if t, ok := p.byID[id]; ok {
			return t, nil
		}
	}
	return nil, ErrTenantNotFound
}
