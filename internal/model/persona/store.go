package persona

// Store exposes persona retrieval for handlers and services.
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
	Get(id string) Persona
}

// MemoryStore implements Store with an in-memory slice. The registry is
// read-only after process start, so concurrent reads need no locking.
type MemoryStore struct {
	items []Persona
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas.
func NewMemoryStore(items []Persona) *MemoryStore {
	return &MemoryStore{items: append([]Persona(nil), items...)}
}

// List returns the personas in registration order.
func (s *MemoryStore) List() []Persona {
	return append([]Persona(nil), s.items...)
}

// FindByID looks up a persona by identifier.
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Persona{}, false
}

// Get resolves a persona, falling back to the default entry for unknown or
// empty identifiers. It never returns a zero Persona.
func (s *MemoryStore) Get(id string) Persona {
	if p, ok := s.FindByID(id); ok {
		return p
	}
	p, _ := s.FindByID(DefaultID)
	return p
}
