package permission

import (
	"errors"
	"sync"
)

var (
	ErrFrozen        = errors.New("registry frozen")
	ErrDuplicate     = errors.New("permission already registered")
	ErrUnknown       = errors.New("permission not registered")
	ErrLimitExceeded = errors.New("permission limit exceeded")
)

// Registry maps permission names to bit positions within a Mask64.
type Registry struct {
	rootReserved bool

	mu        sync.RWMutex
	nameToBit map[string]int
	bitToName map[int]string
	frozen    bool
}

// NewRegistry creates an empty registry. With rootReserved, RootBit is
// never handed out and acts as the super-admin bit.
func NewRegistry(rootReserved bool) *Registry {
	return &Registry{
		rootReserved: rootReserved,
		nameToBit:    make(map[string]int),
		bitToName:    make(map[int]string),
	}
}

// Register assigns the next free bit to name.
func (r *Registry) Register(name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return -1, ErrFrozen
	}
	if name == "" {
		return -1, errors.New("permission name cannot be empty")
	}
	if _, exists := r.nameToBit[name]; exists {
		return -1, ErrDuplicate
	}

	next := len(r.nameToBit)
	limit := 64
	if r.rootReserved {
		limit = RootBit
	}
	if next >= limit {
		return -1, ErrLimitExceeded
	}

	r.nameToBit[name] = next
	r.bitToName[next] = name
	return next, nil
}

// Bit returns the bit index for name.
func (r *Registry) Bit(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[name]
	return bit, ok
}

// Name returns the permission name for bit.
func (r *Registry) Name(bit int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.bitToName[bit]
	return name, ok
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nameToBit)
}

// RootReserved reports whether RootBit acts as the super-admin bit.
func (r *Registry) RootReserved() bool {
	return r.rootReserved
}

// Names lists the permissions present in m in bit order. A root mask lists
// every registered permission.
func (r *Registry) Names(m Mask64) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.bitToName))
	for bit := 0; bit < len(r.bitToName); bit++ {
		if m.Has(bit, r.rootReserved) {
			out = append(out, r.bitToName[bit])
		}
	}
	return out
}
