package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"flakekit/internal/core"
	"flakekit/internal/types"
)

// Pin promotes an alias in the user registry from a possibly-indirect
// target to the fully resolved concrete ref. An alias only present in
// the global registry is resolved and inserted into the user registry;
// the global registry itself is never written. The whole
// read-resolve-write runs under the registry store's exclusive file
// lock so concurrent invocations cannot lose updates.
func (s Service) Pin(ctx context.Context, req PinRequest) (PinResult, error) {
	s.assertWired(ctx)
	aliasRef, err := core.ParseFlakeRef(req.Alias)
	if err != nil {
		return PinResult{}, err
	}
	if !aliasRef.IsIndirect() {
		return PinResult{}, core.ErrAliasNotFound(req.Alias)
	}
	flag, err := parseOverrides(req.Overrides)
	if err != nil {
		return PinResult{}, err
	}
	global, err := s.Registries.Load(s.GlobalRegistryPath, types.RegistryTierGlobal)
	if err != nil {
		return PinResult{}, err
	}

	var result PinResult
	err = s.Registries.Update(s.UserRegistryPath, types.RegistryTierUser, func(user *types.Registry) error {
		target, ok := user.Lookup(aliasRef)
		if !ok {
			target, ok = global.Lookup(aliasRef)
		}
		if !ok {
			return core.ErrAliasNotFound(req.Alias)
		}

		chain := core.NewRegistryChain(flag, *user, global)
		resolver := core.NewResolver(s.Fetcher, s.Evaluator, chain)
		resolver.Workers = s.Workers
		_, src, err := resolver.ResolveOne(ctx, target)
		if err != nil {
			return err
		}
		user.Upsert(aliasRef, src.ResolvedRef)
		result = PinResult{Alias: req.Alias, Target: src.ResolvedRef.String()}
		return nil
	})
	if err != nil {
		return PinResult{}, err
	}
	log.Ctx(ctx).Info().
		Str("alias", result.Alias).
		Str("target", result.Target).
		Msg("alias pinned")
	return result, nil
}
