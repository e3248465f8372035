package app

import (
	"context"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"flakekit/internal/core"
	"flakekit/internal/types"
)

// Add upserts an alias in the user registry. An existing entry for the
// alias is erased first, so a re-added alias moves to the end of the
// registry like a fresh one.
func (s Service) Add(ctx context.Context, req AddRequest) error {
	s.assertWired(ctx)
	from, err := parseAlias(req.Alias)
	if err != nil {
		return err
	}
	to, err := core.ParseFlakeRef(req.Target)
	if err != nil {
		return err
	}
	err = s.Registries.Update(s.UserRegistryPath, types.RegistryTierUser, func(user *types.Registry) error {
		user.Erase(from)
		user.Upsert(from, to)
		return nil
	})
	if err != nil {
		return err
	}
	log.Ctx(ctx).Info().Str("alias", req.Alias).Str("target", req.Target).Msg("alias added")
	return nil
}

// Remove erases an alias from the user registry. A missing alias is an
// error rather than a silent no-op.
func (s Service) Remove(ctx context.Context, req RemoveRequest) error {
	s.assertWired(ctx)
	from, err := parseAlias(req.Alias)
	if err != nil {
		return err
	}
	err = s.Registries.Update(s.UserRegistryPath, types.RegistryTierUser, func(user *types.Registry) error {
		if !user.Erase(from) {
			return core.ErrAliasNotFound(req.Alias)
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Ctx(ctx).Info().Str("alias", req.Alias).Msg("alias removed")
	return nil
}

func parseAlias(text string) (types.FlakeRef, error) {
	ref, err := core.ParseFlakeRef(text)
	if err != nil {
		return types.FlakeRef{}, err
	}
	if !ref.IsIndirect() {
		return types.FlakeRef{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("not a flake alias: " + text)
	}
	return ref, nil
}
