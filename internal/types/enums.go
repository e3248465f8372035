package types

// RefKind classifies a flake reference.
type RefKind string

const (
	// RefKindPath is a local filesystem location. Always concrete.
	RefKindPath RefKind = "path"

	// RefKindConcrete is a URI-like location (VCS, tarball) with an
	// optional branch/tag and optional fixed revision.
	RefKindConcrete RefKind = "concrete"

	// RefKindIndirect is a bare alias name that still needs a registry
	// lookup before it points anywhere.
	RefKindIndirect RefKind = "indirect"
)

// RegistryTier identifies one layer of the registry chain.
type RegistryTier string

const (
	RegistryTierFlag   RegistryTier = "flag"
	RegistryTierUser   RegistryTier = "user"
	RegistryTierGlobal RegistryTier = "global"
)

// LockMode controls whether an existing lock file short-circuits
// re-resolution of a path flake's direct inputs.
type LockMode string

const (
	// LockModeUseExisting applies locked refs for direct inputs when
	// present and allows the lock to be rewritten afterwards.
	LockModeUseExisting LockMode = "use-existing"

	// LockModeForceUpdate ignores any existing lock file and re-resolves
	// every input from scratch.
	LockModeForceUpdate LockMode = "force-update"

	// LockModeReadOnly applies locked refs but the caller must never
	// persist a new lock.
	LockModeReadOnly LockMode = "read-only"
)
