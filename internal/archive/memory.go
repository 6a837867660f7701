package archive

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryArchive keeps documents in a map.
type MemoryArchive struct {
	mu   sync.RWMutex
	docs map[string]Document
	now  func() time.Time
}

// NewMemoryArchive creates an empty archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{docs: map[string]Document{}, now: time.Now}
}

// Save implements Archive.
func (m *MemoryArchive) Save(_ context.Context, doc Document) (Document, error) {
	if err := validate(doc); err != nil {
		return Document{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	if prev, ok := m.docs[doc.DocID]; ok {
		doc.CreatedAt = prev.CreatedAt
	} else {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	m.docs[doc.DocID] = doc
	return doc, nil
}

// Get implements Archive.
func (m *MemoryArchive) Get(_ context.Context, docID string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[docID]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

// ListByUser implements Archive.
func (m *MemoryArchive) ListByUser(_ context.Context, userID string, limit int) ([]Document, error) {
	m.mu.RLock()
	var out []Document
	for _, doc := range m.docs {
		if doc.UserID == userID {
			out = append(out, doc)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].DocID < out[j].DocID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close implements Archive.
func (m *MemoryArchive) Close(context.Context) error { return nil }

// Len returns the number of stored documents.
func (m *MemoryArchive) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}
