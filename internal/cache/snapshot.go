package cache

import "time"

// SnapshotEntry is one exported cache entry. Age rather than an absolute
// write time is recorded so a round trip through Export/Import preserves
// relative expiry.
type SnapshotEntry struct {
	Namespace   string      `json:"namespace"`
	Key         string      `json:"key"`
	Value       interface{} `json:"value"`
	TTLMs       int64       `json:"ttl_ms"`
	AgeMs       int64       `json:"age_ms"`
	Valid       bool        `json:"valid"`
	AccessCount uint64      `json:"access_count"`
}

// Snapshot is a plain, serializable view of the store's contents.
type Snapshot struct {
	ExportedAt time.Time       `json:"exported_at"`
	Entries    []SnapshotEntry `json:"entries"`
}

// Export returns a snapshot sufficient to reconstruct equivalent entries
// via Import. Intended for diagnostics.
func (s *Store) Export() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	snap := Snapshot{ExportedAt: now}
	for namespace, ns := range s.namespaces {
		for key, e := range ns {
			snap.Entries = append(snap.Entries, SnapshotEntry{
				Namespace:   namespace,
				Key:         key,
				Value:       e.value,
				TTLMs:       e.ttl.Milliseconds(),
				AgeMs:       now.Sub(e.writtenAt).Milliseconds(),
				Valid:       e.validAt(now),
				AccessCount: e.accessCount,
			})
		}
	}
	return snap
}

// Import reconstructs entries from a snapshot. The write time is rebuilt
// from the recorded age so remaining validity carries across the round
// trip. Entries already expired at import time are skipped.
func (s *Store) Import(snap Snapshot) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	restored := 0
	for _, se := range snap.Entries {
		ttl := time.Duration(se.TTLMs) * time.Millisecond
		age := time.Duration(se.AgeMs) * time.Millisecond
		if age >= ttl {
			continue
		}
		ns, ok := s.namespaces[se.Namespace]
		if !ok {
			ns = make(map[string]*entry)
			s.namespaces[se.Namespace] = ns
		}
		ns[se.Key] = &entry{
			value:       se.Value,
			ttl:         ttl,
			writtenAt:   now.Add(-age),
			accessCount: se.AccessCount,
			sizeBytes:   estimateSize(se.Value),
		}
		restored++
	}
	return restored
}
