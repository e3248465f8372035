package app

import "flakekit/internal/types"

type ListRequest struct {
	Overrides []string
}

type ListEntry struct {
	Tier types.RegistryTier
	From string
	To   string
}

type ListResult struct {
	Entries []ListEntry
}

type InfoRequest struct {
	Ref       string
	Overrides []string
}

type InfoResult struct {
	ID          string
	Description string
	Epoch       int
	URI         string
	Branch      string
	Revision    string
	RevCount    *uint64
	StorePath   string
}

type DepsRequest struct {
	Ref       string
	Overrides []string
}

// DepsResult lists the transitive dependencies of a flake in
// breadth-first queue order.
type DepsResult struct {
	Flakes    []InfoResult
	NonFlakes []NonFlakeInfo
}

type NonFlakeInfo struct {
	Name      string
	URI       string
	Revision  string
	StorePath string
}

type UpdateRequest struct {
	Ref       string
	Overrides []string
}

type UpdateResult struct {
	LockPath string
	Pinned   int
}

type PinRequest struct {
	Alias     string
	Overrides []string
}

type PinResult struct {
	Alias string
	// Target is the concrete ref the alias now points at.
	Target string
}

type AddRequest struct {
	Alias  string
	Target string
}

type RemoveRequest struct {
	Alias string
}
