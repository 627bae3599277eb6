package ratelimit

// MemoryStore is the in-process Store used by a single-instance
// deployment. A networked key-value store with native per-key expiry can
// replace it without touching the limiter.
type MemoryStore struct {
	counts map[string]int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counts: make(map[string]int)}
}

func (s *MemoryStore) Get(key string) (int, bool) {
	count, ok := s.counts[key]
	return count, ok
}

func (s *MemoryStore) Set(key string, count int) {
	s.counts[key] = count
}

func (s *MemoryStore) Delete(key string) {
	delete(s.counts, key)
}

func (s *MemoryStore) Keys() []string {
	keys := make([]string, 0, len(s.counts))
	for key := range s.counts {
		keys = append(keys, key)
	}
	return keys
}
