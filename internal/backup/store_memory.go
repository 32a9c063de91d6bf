package backup

import (
	"context"
	"sync"
	"time"
)

type memoryObject struct {
	data      []byte
	createdAt time.Time
}

// MemoryStore keeps backups in a map. It is used by tests and by the
// "memory" storage provider.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	now     Clock

	// FailDelete, when set, is returned by Delete for the matching name.
	FailDelete map[string]error
}

// NewMemoryStore creates an empty store; clock defaults to time.Now
func NewMemoryStore(clock Clock) *MemoryStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryStore{
		objects: make(map[string]memoryObject),
		now:     clock,
	}
}

// Put stores data with an explicit creation time, replacing any existing object
func (m *MemoryStore) Put(name string, data []byte, createdAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = memoryObject{data: append([]byte(nil), data...), createdAt: createdAt}
}

func (m *MemoryStore) List(ctx context.Context) ([]ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]ObjectInfo, 0, len(m.objects))
	for name, obj := range m.objects {
		infos = append(infos, ObjectInfo{Name: name, Size: int64(len(obj.data)), CreatedAt: obj.createdAt})
	}
	return infos, nil
}

func (m *MemoryStore) Stat(ctx context.Context, name string) (*ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[name]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return &ObjectInfo{Name: name, Size: int64(len(obj.data)), CreatedAt: obj.createdAt}, nil
}

func (m *MemoryStore) Read(ctx context.Context, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[name]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return append([]byte(nil), obj.data...), nil
}

func (m *MemoryStore) Write(ctx context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.objects[name]; exists {
		return ErrObjectExists
	}
	m.objects[name] = memoryObject{data: append([]byte(nil), data...), createdAt: m.now()}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.FailDelete[name]; ok {
		return err
	}
	if _, ok := m.objects[name]; !ok {
		return ErrObjectNotFound
	}
	delete(m.objects, name)
	return nil
}
