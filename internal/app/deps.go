package app

import (
	"context"

	"flakekit/internal/core"
	"flakekit/internal/types"
)

// Deps resolves the full dependency tree and lists every transitive
// dependency in breadth-first order: a work queue is seeded with the
// root and drained in arrival order, so the listing is reproducible
// for a given manifest regardless of resolution concurrency.
func (s Service) Deps(ctx context.Context, req DepsRequest) (DepsResult, error) {
	s.assertWired(ctx)
	ref, err := core.ParseFlakeRef(req.Ref)
	if err != nil {
		return DepsResult{}, err
	}
	chain, err := s.loadChain(req.Overrides)
	if err != nil {
		return DepsResult{}, err
	}
	resolver, err := s.resolverFor(chain, ref)
	if err != nil {
		return DepsResult{}, err
	}
	root, err := resolver.Resolve(ctx, ref, types.LockModeReadOnly)
	if err != nil {
		return DepsResult{}, err
	}

	var result DepsResult
	seen := map[*types.ResolvedFlake]struct{}{}
	queue := []*types.ResolvedFlake{root}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		for _, dep := range node.NonFlake {
			result.NonFlakes = append(result.NonFlakes, NonFlakeInfo{
				Name:      dep.Name,
				URI:       dep.Source.ResolvedRef.String(),
				Revision:  dep.Source.ResolvedRef.Rev,
				StorePath: dep.Source.StorePath,
			})
		}
		for _, input := range node.Inputs {
			result.Flakes = append(result.Flakes, flakeInfo(input.Node.Flake, input.Node.Source))
			if _, ok := seen[input.Node]; ok {
				// Shared diamond node; list it, walk it once.
				continue
			}
			seen[input.Node] = struct{}{}
			queue = append(queue, input.Node)
		}
	}
	return result, nil
}
