package types

// RegistryEntry maps an indirect (alias) reference to its target. The
// target may itself be indirect, forming a chained alias.
type RegistryEntry struct {
	From FlakeRef
	To   FlakeRef
}

// Registry is one tier of the registry chain: an ordered sequence of
// alias mappings, unique by the From key. Order is preserved across
// load/save so listings stay reproducible.
type Registry struct {
	Tier    RegistryTier
	Entries []RegistryEntry
}

// Lookup returns the target for ref's alias and whether it was found.
// Only indirect refs ever match; path and concrete refs are never
// substituted.
func (r Registry) Lookup(ref FlakeRef) (FlakeRef, bool) {
	if !ref.IsIndirect() {
		return FlakeRef{}, false
	}
	for _, entry := range r.Entries {
		if entry.From.Key() == ref.Key() {
			return entry.To, true
		}
	}
	return FlakeRef{}, false
}

// Upsert inserts an entry or overwrites the existing entry with the
// same From key, keeping its position.
func (r *Registry) Upsert(from, to FlakeRef) {
	for i, entry := range r.Entries {
		if entry.From.Key() == from.Key() {
			r.Entries[i].To = to
			return
		}
	}
	r.Entries = append(r.Entries, RegistryEntry{From: from, To: to})
}

// Erase removes the entry with the same From key. It reports whether
// an entry was removed.
func (r *Registry) Erase(from FlakeRef) bool {
	for i, entry := range r.Entries {
		if entry.From.Key() == from.Key() {
			r.Entries = append(r.Entries[:i], r.Entries[i+1:]...)
			return true
		}
	}
	return false
}

// RegistryFile is the on-disk YAML shape of one registry tier. The
// textual ref forms round-trip through the reference grammar.
type RegistryFile struct {
	Version int                 `yaml:"version"`
	Entries []RegistryFileEntry `yaml:"entries"`
}

type RegistryFileEntry struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// RegistryFileVersion is the current registry format version.
const RegistryFileVersion = 1
