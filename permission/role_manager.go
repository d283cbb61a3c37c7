package permission

import (
	"errors"
	"sync"
)

// Permission names used by the HTTP surface.
const (
	ProfileRead    = "profile:read"
	ProfileWrite   = "profile:write"
	AuditRead      = "audit:read"
	BookingsManage = "bookings:manage"
)

// RoleManager composes registered permissions into per-role masks.
type RoleManager struct {
	registry *Registry

	mu     sync.RWMutex
	roles  map[string]Mask64
	frozen bool
}

func NewRoleManager(registry *Registry) *RoleManager {
	return &RoleManager{
		registry: registry,
		roles:    make(map[string]Mask64),
	}
}

// RegisterRole stores the mask built from permissionNames under roleName.
// With root set the role also carries RootBit.
func (rm *RoleManager) RegisterRole(roleName string, permissionNames []string, root bool) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.frozen {
		return ErrFrozen
	}
	if roleName == "" {
		return errors.New("role name empty")
	}
	if _, exists := rm.roles[roleName]; exists {
		return errors.New("role already registered")
	}
	if root && !rm.registry.RootReserved() {
		return errors.New("root bit not reserved")
	}

	var mask Mask64
	for _, perm := range permissionNames {
		bit, ok := rm.registry.Bit(perm)
		if !ok {
			return errors.Join(ErrUnknown, errors.New(perm))
		}
		mask.Set(bit)
	}
	if root {
		mask.Set(RootBit)
	}

	rm.roles[roleName] = mask
	return nil
}

// Mask returns the mask for roleName.
func (rm *RoleManager) Mask(roleName string) (Mask64, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	mask, ok := rm.roles[roleName]
	return mask, ok
}

// Allows reports whether roleName holds perm. Unknown roles and unknown
// permissions are denied.
func (rm *RoleManager) Allows(roleName, perm string) bool {
	mask, ok := rm.Mask(roleName)
	if !ok {
		return false
	}
	bit, ok := rm.registry.Bit(perm)
	if !ok {
		return false
	}
	return mask.Has(bit, rm.registry.RootReserved())
}

// Registry returns the registry the role masks are built from.
func (rm *RoleManager) Registry() *Registry {
	return rm.registry
}

func (rm *RoleManager) Freeze() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.frozen = true
}

func (rm *RoleManager) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.roles)
}

// Standard returns the frozen role set for the two account roles.
func Standard() *RoleManager {
	reg := NewRegistry(true)
	for _, name := range []string{ProfileRead, ProfileWrite, AuditRead, BookingsManage} {
		if _, err := reg.Register(name); err != nil {
			panic(err)
		}
	}
	reg.Freeze()

	rm := NewRoleManager(reg)
	if err := rm.RegisterRole("user", []string{ProfileRead, ProfileWrite, BookingsManage}, false); err != nil {
		panic(err)
	}
	if err := rm.RegisterRole("admin", nil, true); err != nil {
		panic(err)
	}
	rm.Freeze()
	return rm
}
