package phlex

import (
	"fmt"

	"github.com/phlex-run/phlex/pkg/schema"
)

// PersistenceBackend is the contract Output nodes' side effects run
// through. The core never interprets a product's payload — payload type
// names are strings agreed between producer and backend — it only
// checks the declared type name against whatever schema the caller
// registered for that product.
type PersistenceBackend interface {
	CreateContainers(creator string, schemas map[string]schema.Schema) error
	RegisterWrite(creator, product string, data any, typeName string) error
	CommitOutput(creator, id string) error
	Read(creator, product, id string) (any, string, error)
}

// Persistence wraps a PersistenceBackend with payload-type validation,
// built on pkg/schema's generic validator. Every RegisterWrite is
// checked against the schema registered
// for that product under CreateContainers before it reaches the
// backend, so a producer/backend type mismatch is caught at the
// boundary rather than left to convention.
type Persistence struct {
	backend PersistenceBackend
	schemas map[string]schema.Schema
}

// NewPersistence wraps backend with payload-type validation.
func NewPersistence(backend PersistenceBackend) *Persistence {
	return &Persistence{backend: backend, schemas: make(map[string]schema.Schema)}
}

// CreateContainers registers schemas for each product and delegates
// actual container creation to the backend.
func (p *Persistence) CreateContainers(creator string, schemas map[string]schema.Schema) error {
	for product, s := range schemas {
		p.schemas[product] = s
	}
	return p.backend.CreateContainers(creator, schemas)
}

// RegisterWrite validates data against product's declared schema, if
// any was registered for it, before forwarding the write to the backend.
func (p *Persistence) RegisterWrite(creator, product string, data any, typeName string) error {
	if s, ok := p.schemas[product]; ok {
		if _, err := s.Validate(data); err != nil {
			return fmt.Errorf("%w: product %s: %v", ErrPayloadTypeMismatch, product, err)
		}
	}
	return p.backend.RegisterWrite(creator, product, data, typeName)
}

// CommitOutput finalizes every write registered for id under creator.
func (p *Persistence) CommitOutput(creator, id string) error {
	return p.backend.CommitOutput(creator, id)
}

// Read retrieves a previously committed product for id.
func (p *Persistence) Read(creator, product, id string) (any, string, error) {
	return p.backend.Read(creator, product, id)
}
