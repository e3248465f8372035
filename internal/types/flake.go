package types

// SourceInfo is the result of fetching a concrete reference: the ref
// with branch/revision filled in from the fetched object, plus the
// content-addressed path the source was unpacked to. Immutable once
// produced.
type SourceInfo struct {
	// ResolvedRef carries the fetched Ref/Rev. Its Identity() is the
	// canonical identity used for deduplication and cycle detection.
	ResolvedRef FlakeRef

	// RevCount is the number of ancestor revisions, when the fetcher
	// knows it (nil otherwise).
	RevCount *uint64

	// NarHash is the content hash of the unpacked source.
	NarHash string

	// StorePath is where the source lives on disk.
	StorePath string
}

// DeclaredInput is one dependency declared by a flake manifest, in
// declaration order.
type DeclaredInput struct {
	// Name is the input's local name within the declaring flake.
	Name string

	// Ref is the declared reference, possibly an alias.
	Ref FlakeRef

	// Flake marks whether the input is itself a flake. Non-flake
	// inputs are fetched but never evaluated or recursed into.
	Flake bool
}

// FlakeMetadata is the evaluated manifest of one flake.
type FlakeMetadata struct {
	ID          string
	Description string
	Epoch       int
	Inputs      []DeclaredInput
}

// ResolvedInput is one resolved flake input, keyed by declared name.
type ResolvedInput struct {
	Name string
	Node *ResolvedFlake
}

// NonFlakeDep is a non-flake input fetched into a source leaf.
type NonFlakeDep struct {
	Name   string
	Source SourceInfo
}

// ResolvedFlake is one node of the resolved dependency tree. Inputs
// preserve declaration order; diamond dependencies share the same
// node. The tree lives for the duration of one resolution call.
type ResolvedFlake struct {
	Flake    FlakeMetadata
	Source   SourceInfo
	Inputs   []ResolvedInput
	NonFlake []NonFlakeDep
}

// Input returns the resolved child for a declared input name.
func (r *ResolvedFlake) Input(name string) (*ResolvedFlake, bool) {
	for _, input := range r.Inputs {
		if input.Name == name {
			return input.Node, true
		}
	}
	return nil, false
}
