package core

import "flakekit/internal/types"

// RegistryChain composes the three registry tiers in fixed priority
// order: flag overrides first, then the user registry, then the global
// one. The flag tier is built fresh per invocation and never persisted.
type RegistryChain struct {
	Flag   types.Registry
	User   types.Registry
	Global types.Registry
}

// NewRegistryChain tags each tier and returns the chain.
func NewRegistryChain(flag, user, global types.Registry) RegistryChain {
	flag.Tier = types.RegistryTierFlag
	user.Tier = types.RegistryTierUser
	global.Tier = types.RegistryTierGlobal
	return RegistryChain{Flag: flag, User: user, Global: global}
}

// Tiers returns the registries in consultation order.
func (c RegistryChain) Tiers() []types.Registry {
	return []types.Registry{c.Flag, c.User, c.Global}
}

// Contains reports whether any tier maps ref's alias.
func (c RegistryChain) Contains(ref types.FlakeRef) bool {
	for _, tier := range c.Tiers() {
		if _, ok := tier.Lookup(ref); ok {
			return true
		}
	}
	return false
}

// SubstituteOnce applies one alias substitution step: the first tier
// holding ref's alias wins. A miss in every tier returns ref unchanged,
// meaning no further substitution is possible. Pure lookup; the caller
// iterates to a fixed point and owns cycle detection. Ref/Rev carried
// on the alias survive substitution unless the target pins its own.
func (c RegistryChain) SubstituteOnce(ref types.FlakeRef) types.FlakeRef {
	if !ref.IsIndirect() {
		return ref
	}
	for _, tier := range c.Tiers() {
		if target, ok := tier.Lookup(ref); ok {
			return target.WithDecorations(ref)
		}
	}
	return ref
}
