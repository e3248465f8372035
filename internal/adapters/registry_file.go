package adapters

import (
	"os"
	"path/filepath"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"flakekit/internal/core"
	"flakekit/internal/ports"
	"flakekit/internal/shared"
	"flakekit/internal/types"
)

// RegistryFileAdapter persists registry tiers as YAML files whose
// textual refs round-trip through the reference grammar.
type RegistryFileAdapter struct{}

func NewRegistryFileAdapter() RegistryFileAdapter {
	return RegistryFileAdapter{}
}

func (a RegistryFileAdapter) Load(path string, tier types.RegistryTier) (types.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No file yet means an empty tier, not a failure.
			return types.Registry{Tier: tier}, nil
		}
		return types.Registry{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read registry file").
			WithCause(err)
	}
	var file types.RegistryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return types.Registry{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid registry format").
			WithCause(err)
	}
	registry := types.Registry{Tier: tier}
	for _, entry := range file.Entries {
		from, err := core.ParseFlakeRef(entry.From)
		if err != nil {
			return types.Registry{}, err
		}
		if !from.IsIndirect() {
			return types.Registry{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("registry entry source must be an alias: " + entry.From)
		}
		to, err := core.ParseFlakeRef(entry.To)
		if err != nil {
			return types.Registry{}, err
		}
		registry.Entries = append(registry.Entries, types.RegistryEntry{From: from, To: to})
	}
	return registry, nil
}

func (a RegistryFileAdapter) Save(path string, registry types.Registry) error {
	file := types.RegistryFile{Version: types.RegistryFileVersion}
	for _, entry := range registry.Entries {
		file.Entries = append(file.Entries, types.RegistryFileEntry{
			From: entry.From.String(),
			To:   entry.To.String(),
		})
	}
	data, err := yaml.Marshal(file)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to encode registry").
			WithCause(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create registry directory").
			WithCause(err)
	}
	if err := shared.AtomicWriteFile(path, data, 0644); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write registry file").
			WithCause(err)
	}
	return nil
}

// Update performs a read-modify-write under an exclusive file lock
// spanning load, mutate, and save, so concurrent invocations cannot
// lose each other's entries.
func (a RegistryFileAdapter) Update(path string, tier types.RegistryTier, mutate func(*types.Registry) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create registry directory").
			WithCause(err)
	}
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to lock registry file").
			WithCause(err)
	}
	defer lock.Unlock()

	registry, err := a.Load(path, tier)
	if err != nil {
		return err
	}
	if err := mutate(&registry); err != nil {
		return err
	}
	return a.Save(path, registry)
}

var _ ports.RegistryStorePort = RegistryFileAdapter{}
