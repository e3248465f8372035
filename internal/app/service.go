package app

import (
	"context"
	"strings"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/ZanzyTHEbar/errbuilder-go"

	"flakekit/internal/adapters"
	"flakekit/internal/core"
	"flakekit/internal/ports"
	"flakekit/internal/types"
)

// Config carries the filesystem locations the service operates on.
type Config struct {
	StoreDir           string
	UserRegistryPath   string
	GlobalRegistryPath string
	Workers            int
}

type Service struct {
	Fetcher    ports.FetcherPort
	Evaluator  ports.EvaluatorPort
	Registries ports.RegistryStorePort
	Locks      ports.LockStorePort

	UserRegistryPath   string
	GlobalRegistryPath string
	Workers            int
}

func NewService(cfg Config) Service {
	return Service{
		Fetcher:            adapters.NewSourceFetcher(cfg.StoreDir),
		Evaluator:          adapters.NewManifestEvaluator(),
		Registries:         adapters.NewRegistryFileAdapter(),
		Locks:              adapters.NewLockFileAdapter(),
		UserRegistryPath:   cfg.UserRegistryPath,
		GlobalRegistryPath: cfg.GlobalRegistryPath,
		Workers:            cfg.Workers,
	}
}

func (s Service) assertWired(ctx context.Context) {
	assert.NotEmpty(ctx, s.UserRegistryPath, "user registry path must be configured")
	assert.NotEmpty(ctx, s.GlobalRegistryPath, "global registry path must be configured")
}

// parseOverrides turns repeated "alias=ref" flag values into the
// ephemeral flag-tier registry. Built fresh per invocation, never
// persisted.
func parseOverrides(overrides []string) (types.Registry, error) {
	registry := types.Registry{Tier: types.RegistryTierFlag}
	for _, raw := range overrides {
		alias, target, found := strings.Cut(raw, "=")
		if !found || alias == "" || target == "" {
			return types.Registry{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("override must have the form alias=flake-ref: " + raw)
		}
		from, err := core.ParseFlakeRef(alias)
		if err != nil {
			return types.Registry{}, err
		}
		if !from.IsIndirect() {
			return types.Registry{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("override source must be an alias: " + alias)
		}
		to, err := core.ParseFlakeRef(target)
		if err != nil {
			return types.Registry{}, err
		}
		registry.Upsert(from, to)
	}
	return registry, nil
}

// loadChain assembles the three-tier registry chain from the flag
// overrides and the persisted user and global registries.
func (s Service) loadChain(overrides []string) (core.RegistryChain, error) {
	flag, err := parseOverrides(overrides)
	if err != nil {
		return core.RegistryChain{}, err
	}
	user, err := s.Registries.Load(s.UserRegistryPath, types.RegistryTierUser)
	if err != nil {
		return core.RegistryChain{}, err
	}
	global, err := s.Registries.Load(s.GlobalRegistryPath, types.RegistryTierGlobal)
	if err != nil {
		return core.RegistryChain{}, err
	}
	return core.NewRegistryChain(flag, user, global), nil
}

// resolverFor builds a resolver over chain, loading the lock file
// when the target is a path flake so its pins can apply.
func (s Service) resolverFor(chain core.RegistryChain, root types.FlakeRef) (*core.Resolver, error) {
	resolver := core.NewResolver(s.Fetcher, s.Evaluator, chain)
	resolver.Workers = s.Workers
	if root.IsPath() {
		lock, err := s.Locks.Load(root.Path)
		if err != nil {
			return nil, err
		}
		resolver.Lock = lock
	}
	return resolver, nil
}
