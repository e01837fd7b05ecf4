package storage

import (
	"context"
	"sync"

	"github.com/pithecene-io/burrow/types"
)

// StubProvider is an in-memory Provider for tests. It records calls and
// can be told to fail.
type StubProvider struct {
	mu sync.Mutex

	// StartErr is returned by Start when set.
	StartErr error
	// AddErr is returned by Add when set.
	AddErr error

	records map[string]*types.Record
	order   []string
	started bool

	AddCalls    []string
	DeleteCalls []string
}

var _ Provider = (*StubProvider)(nil)

// NewStubProvider creates a stub preloaded with records.
func NewStubProvider(records ...*types.Record) *StubProvider {
	p := &StubProvider{records: make(map[string]*types.Record)}
	for _, r := range records {
		p.put(r)
	}
	return p
}

func (p *StubProvider) put(rec *types.Record) {
	if _, ok := p.records[rec.ID]; !ok {
		p.order = append(p.order, rec.ID)
	}
	p.records[rec.ID] = rec
}

// Start implements Provider.
func (p *StubProvider) Start(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.StartErr != nil {
		return p.StartErr
	}
	p.started = true
	return nil
}

// Add implements Provider.
func (p *StubProvider) Add(_ context.Context, rec *types.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.AddCalls = append(p.AddCalls, rec.ID)
	if p.AddErr != nil {
		return p.AddErr
	}
	p.put(rec)
	return nil
}

// Delete implements Provider.
func (p *StubProvider) Delete(_ context.Context, rec *types.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.DeleteCalls = append(p.DeleteCalls, rec.ID)
	if _, ok := p.records[rec.ID]; !ok {
		return nil
	}
	delete(p.records, rec.ID)
	for i, id := range p.order {
		if id == rec.ID {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get implements Provider.
func (p *StubProvider) Get(context.Context) ([]*types.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*types.Record, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.records[id])
	}
	return out, nil
}

// Close implements Provider.
func (p *StubProvider) Close() error { return nil }

// IDs returns the persisted record IDs in insertion order.
func (p *StubProvider) IDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.order...)
}

// Started reports whether Start succeeded.
func (p *StubProvider) Started() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}
