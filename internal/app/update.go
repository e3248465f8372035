package app

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"flakekit/internal/adapters"
	"flakekit/internal/core"
	"flakekit/internal/types"
)

// Update re-resolves a path flake from scratch, ignoring any existing
// lock, and persists the direct inputs' concrete refs as the new lock.
// Only path flakes are updatable: a fully concrete upstream ref is
// already locked by its fixed revision, and anything else has nowhere
// to keep a lock file.
func (s Service) Update(ctx context.Context, req UpdateRequest) (UpdateResult, error) {
	s.assertWired(ctx)
	ref, err := core.ParseFlakeRef(req.Ref)
	if err != nil {
		return UpdateResult{}, err
	}
	if !ref.IsPath() {
		return UpdateResult{}, core.ErrNotUpdatable(ref)
	}
	chain, err := s.loadChain(req.Overrides)
	if err != nil {
		return UpdateResult{}, err
	}
	resolver := core.NewResolver(s.Fetcher, s.Evaluator, chain)
	resolver.Workers = s.Workers
	root, err := resolver.Resolve(ctx, ref, types.LockModeForceUpdate)
	if err != nil {
		return UpdateResult{}, err
	}

	lock := types.LockFile{Version: types.LockFileVersion}
	for _, input := range root.Inputs {
		lock.Set(input.Name, input.Node.Source.ResolvedRef)
	}
	for _, dep := range root.NonFlake {
		lock.Set(dep.Name, dep.Source.ResolvedRef)
	}

	dir := root.Source.ResolvedRef.Path
	if err := s.Locks.Save(dir, lock); err != nil {
		return UpdateResult{}, err
	}
	lockPath := filepath.Join(dir, adapters.LockFileName)
	log.Ctx(ctx).Info().
		Str("lock", lockPath).
		Int("pinned", len(lock.Entries)).
		Msg("lock file updated")
	return UpdateResult{LockPath: lockPath, Pinned: len(lock.Entries)}, nil
}
