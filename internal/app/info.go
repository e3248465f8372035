package app

import (
	"context"

	"flakekit/internal/core"
	"flakekit/internal/types"
)

// Info resolves a single flake, without recursing into its inputs,
// and reports its metadata and source location.
func (s Service) Info(ctx context.Context, req InfoRequest) (InfoResult, error) {
	s.assertWired(ctx)
	ref, err := core.ParseFlakeRef(req.Ref)
	if err != nil {
		return InfoResult{}, err
	}
	chain, err := s.loadChain(req.Overrides)
	if err != nil {
		return InfoResult{}, err
	}
	resolver, err := s.resolverFor(chain, ref)
	if err != nil {
		return InfoResult{}, err
	}
	meta, src, err := resolver.ResolveOne(ctx, ref)
	if err != nil {
		return InfoResult{}, err
	}
	return flakeInfo(meta, src), nil
}

func flakeInfo(meta types.FlakeMetadata, src types.SourceInfo) InfoResult {
	return InfoResult{
		ID:          meta.ID,
		Description: meta.Description,
		Epoch:       meta.Epoch,
		URI:         src.ResolvedRef.String(),
		Branch:      src.ResolvedRef.Ref,
		Revision:    src.ResolvedRef.Rev,
		RevCount:    src.RevCount,
		StorePath:   src.StorePath,
	}
}
