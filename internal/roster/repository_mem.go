package roster

import (
	"context"
	"sync"
)

type memRepo struct {
	mu    sync.RWMutex
	lists map[Category][]string
}

func NewMemoryRepo() Repo {
	return &memRepo{lists: make(map[Category][]string)}
}

func (m *memRepo) ReadAll(ctx context.Context, c Category) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := m.lists[c]
	out := make([]string, len(rows))
	copy(out, rows)
	return out, nil
}

func (m *memRepo) Append(ctx context.Context, c Category, entry string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[c] = append(m.lists[c], entry)
	return nil
}

func (m *memRepo) ReplaceAll(ctx context.Context, c Category, entries []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(entries) == 0 {
		delete(m.lists, c)
		return nil
	}
	rows := make([]string, len(entries))
	copy(rows, entries)
	m.lists[c] = rows
	return nil
}
