package ports

import "flakekit/internal/types"

// RegistryStorePort persists one registry tier. Load on a missing file
// returns an empty registry, not an error.
type RegistryStorePort interface {
	Load(path string, tier types.RegistryTier) (types.Registry, error)
	Save(path string, registry types.Registry) error

	// Update runs a read-modify-write of the registry at path under an
	// exclusive file-scoped lock, so concurrent invocations cannot
	// lose each other's writes. mutate may return an error to abort
	// without persisting.
	Update(path string, tier types.RegistryTier, mutate func(*types.Registry) error) error
}

// LockStorePort persists the lock file alongside a path flake.
type LockStorePort interface {
	// Load returns the lock for the flake at dir, or an empty lock if
	// none exists yet. Absence means "no pins yet", never an error.
	Load(dir string) (types.LockFile, error)

	// Save overwrites the lock for the flake at dir.
	Save(dir string, lock types.LockFile) error
}
