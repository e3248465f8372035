package adapters

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"flakekit/internal/core"
	"flakekit/internal/ports"
	"flakekit/internal/shared"
	"flakekit/internal/types"
)

// LockFileName is the lock file kept next to a path flake's manifest.
const LockFileName = "flake.lock"

type lockFileDoc struct {
	Version int               `json:"version"`
	Inputs  map[string]string `json:"inputs"`
}

// LockFileAdapter persists the pinned direct inputs of a path flake as
// a JSON file in the flake's directory.
type LockFileAdapter struct{}

func NewLockFileAdapter() LockFileAdapter {
	return LockFileAdapter{}
}

func (a LockFileAdapter) Load(dir string) (types.LockFile, error) {
	data, err := os.ReadFile(filepath.Join(dir, LockFileName))
	if err != nil {
		if os.IsNotExist(err) {
			// Absence means "no pins yet".
			return types.LockFile{Version: types.LockFileVersion}, nil
		}
		return types.LockFile{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read lock file").
			WithCause(err)
	}
	var doc lockFileDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return types.LockFile{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid lock file format").
			WithCause(err)
	}
	lock := types.LockFile{Version: doc.Version}
	names := make([]string, 0, len(doc.Inputs))
	for name := range doc.Inputs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ref, err := core.ParseFlakeRef(doc.Inputs[name])
		if err != nil {
			return types.LockFile{}, err
		}
		if ref.IsIndirect() {
			return types.LockFile{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("lock file entry is not concrete: " + name)
		}
		lock.Entries = append(lock.Entries, types.LockEntry{Name: name, Ref: ref})
	}
	return lock, nil
}

func (a LockFileAdapter) Save(dir string, lock types.LockFile) error {
	doc := lockFileDoc{Version: types.LockFileVersion, Inputs: map[string]string{}}
	for _, entry := range lock.Entries {
		doc.Inputs[entry.Name] = entry.Ref.String()
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to encode lock file").
			WithCause(err)
	}
	path := filepath.Join(dir, LockFileName)
	if err := shared.AtomicWriteFile(path, append(data, '\n'), 0644); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write lock file").
			WithCause(err)
	}
	return nil
}

var _ ports.LockStorePort = LockFileAdapter{}
