package persona

// Store exposes persona retrieval for HTTP handlers and prompt assembly.
type Store interface {
	List() []Persona
	Find(key string) (Persona, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Persona
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas.
func NewMemoryStore(items []Persona) *MemoryStore {
	return &MemoryStore{items: append([]Persona(nil), items...)}
}

// List returns the predefined persona list.
func (s *MemoryStore) List() []Persona {
	return append([]Persona(nil), s.items...)
}

func (s *MemoryStore) findByID(id string) (Persona, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Persona{}, false
}

// Find matches either the identifier or the display label, e.g. "NLP 学术专家".
func (s *MemoryStore) Find(key string) (Persona, bool) {
	if p, ok := s.findByID(key); ok {
		return p, true
	}
	for _, item := range s.items {
		if item.Label == key {
			return item, true
		}
	}
	return Persona{}, false
}
