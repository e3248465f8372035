package types

// LockEntry pins one direct input of a path flake to a fully concrete
// reference.
type LockEntry struct {
	Name string
	Ref  FlakeRef
}

// LockFile is the pinned resolution of a path flake's direct inputs.
// Exactly one lock file belongs to one path flake. An absent file is
// an empty lock, never an error.
type LockFile struct {
	Version int
	Entries []LockEntry
}

// LockFileVersion is the current lock format version.
const LockFileVersion = 1

// Lookup returns the pinned ref for an input name.
func (l LockFile) Lookup(name string) (FlakeRef, bool) {
	for _, entry := range l.Entries {
		if entry.Name == name {
			return entry.Ref, true
		}
	}
	return FlakeRef{}, false
}

// Set inserts or replaces the pin for an input name, preserving the
// position of existing entries.
func (l *LockFile) Set(name string, ref FlakeRef) {
	for i, entry := range l.Entries {
		if entry.Name == name {
			l.Entries[i].Ref = ref
			return
		}
	}
	l.Entries = append(l.Entries, LockEntry{Name: name, Ref: ref})
}

// IsEmpty reports whether the lock pins anything at all.
func (l LockFile) IsEmpty() bool {
	return len(l.Entries) == 0
}
