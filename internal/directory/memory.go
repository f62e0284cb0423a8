package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/sheikh-saqib/tuition-fee-ledger/internal/interfaces"
	"github.com/sheikh-saqib/tuition-fee-ledger/internal/xerrors"
)

// Memory is an in-process student/batch directory. Membership order is the
// order students were added, which is the order batch results are reported in.
type Memory struct {
	mu       sync.RWMutex
	students map[string]struct{}
	batches  map[string][]string
}

func NewMemory() *Memory {
	return &Memory{
		students: make(map[string]struct{}),
		batches:  make(map[string][]string),
	}
}

// Seed is the JSON layout accepted by LoadFile.
type Seed struct {
	Students []string            `json:"students"`
	Batches  map[string][]string `json:"batches"`
}

// LoadFile seeds a Memory directory from a JSON file. Every batch member is
// also registered as a student.
func LoadFile(path string) (*Memory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read directory seed: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("decode directory seed %s: %w", path, err)
	}

	m := NewMemory()
	for _, id := range seed.Students {
		m.AddStudent(id)
	}
	for batchID, members := range seed.Batches {
		m.AddBatch(batchID)
		for _, id := range members {
			m.Enroll(batchID, id)
		}
	}
	return m, nil
}

func (m *Memory) AddStudent(accountID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[accountID] = struct{}{}
}

func (m *Memory) AddBatch(batchID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.batches[batchID]; !ok {
		m.batches[batchID] = []string{}
	}
}

// Enroll registers the student and appends it to the batch, creating the batch if needed.
func (m *Memory) Enroll(batchID, accountID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[accountID] = struct{}{}
	for _, id := range m.batches[batchID] {
		if id == accountID {
			return
		}
	}
	m.batches[batchID] = append(m.batches[batchID], accountID)
}

// RemoveStudent deletes the student identity but leaves batch membership
// untouched, as a directory does between a membership read and a later lookup.
func (m *Memory) RemoveStudent(accountID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.students, accountID)
}

func (m *Memory) AccountExists(ctx context.Context, accountID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.students[accountID]
	return ok, nil
}

func (m *Memory) BatchMembers(ctx context.Context, batchID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	members, ok := m.batches[batchID]
	if !ok {
		return nil, fmt.Errorf("batch %s: %w", batchID, xerrors.ErrNotFound)
	}
	out := make([]string, len(members))
	copy(out, members)
	return out, nil
}

var _ interfaces.Directory = (*Memory)(nil)
