package app

import (
	"context"

	"github.com/rs/zerolog/log"
)

// List reports every registry entry, highest-priority tier first, so
// the printed order matches substitution order.
func (s Service) List(ctx context.Context, req ListRequest) (ListResult, error) {
	s.assertWired(ctx)
	chain, err := s.loadChain(req.Overrides)
	if err != nil {
		return ListResult{}, err
	}
	var result ListResult
	for _, tier := range chain.Tiers() {
		for _, entry := range tier.Entries {
			result.Entries = append(result.Entries, ListEntry{
				Tier: tier.Tier,
				From: entry.From.String(),
				To:   entry.To.String(),
			})
		}
	}
	log.Ctx(ctx).Debug().Int("entries", len(result.Entries)).Msg("registries listed")
	return result, nil
}
