package admission

// Store is the persistence abstraction for rate windows.
// The Limiter owns all locking; implementations need not be goroutine-safe.
// Swapping the store does not touch the admission policy.
type Store interface {
	Get(key ClientKey) (Window, bool)
	Set(key ClientKey, w Window)
	Delete(key ClientKey)
	Keys() []ClientKey
}

// InMemoryStore is a process-local implementation of Store.
type InMemoryStore struct {
	windows map[ClientKey]Window
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		windows: make(map[ClientKey]Window),
	}
}

// Get implements Store.Get.
func (s *InMemoryStore) Get(key ClientKey) (Window, bool) {
	w, ok := s.windows[key]
	return w, ok
}

// Set implements Store.Set.
func (s *InMemoryStore) Set(key ClientKey, w Window) {
	s.windows[key] = w
}

// Delete implements Store.Delete.
func (s *InMemoryStore) Delete(key ClientKey) {
	delete(s.windows, key)
}

// Keys implements Store.Keys.
func (s *InMemoryStore) Keys() []ClientKey {
	keys := make([]ClientKey, 0, len(s.windows))
	for k := range s.windows {
		keys = append(keys, k)
	}
	return keys
}
