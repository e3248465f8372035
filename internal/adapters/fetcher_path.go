package adapters

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"flakekit/internal/types"
)

// fetchPath copies a local directory into the store under its content
// hash. VCS metadata is excluded from both the hash and the copy so a
// checkout and its store copy address identically.
func (f *SourceFetcher) fetchPath(ctx context.Context, ref types.FlakeRef) (types.SourceInfo, error) {
	root, err := filepath.Abs(ref.Path)
	if err != nil {
		return types.SourceInfo{}, pathFetchError(ref.Path, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return types.SourceInfo{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("flake path does not exist: " + ref.Path).
			WithCause(err)
	}
	if !info.IsDir() {
		return types.SourceInfo{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("flake path is not a directory: " + ref.Path)
	}

	digest, err := hashDir(root)
	if err != nil {
		return types.SourceInfo{}, pathFetchError(ref.Path, err)
	}
	if err := f.ensureStore(); err != nil {
		return types.SourceInfo{}, err
	}
	storePath := f.storePathFor(digest, filepath.Base(root))
	if _, err := os.Stat(storePath); os.IsNotExist(err) {
		if err := copyDir(root, storePath); err != nil {
			return types.SourceInfo{}, pathFetchError(ref.Path, err)
		}
	}

	resolved := ref
	resolved.Path = root
	return types.SourceInfo{
		ResolvedRef: resolved,
		NarHash:     digest,
		StorePath:   storePath,
	}, nil
}

func pathFetchError(path string, cause error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg("failed to fetch path flake: " + path).
		WithCause(cause)
}

// hashDir computes a stable digest over relative file names, modes,
// and contents, skipping VCS metadata.
func hashDir(root string) (string, error) {
	h := sha256.New()
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return "", err
	}
	sort.Strings(paths)
	for _, path := range paths {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return "", err
		}
		io.WriteString(h, rel)
		io.WriteString(h, "\x00")
		file, err := os.Open(path)
		if err != nil {
			return "", err
		}
		_, err = io.Copy(h, file)
		file.Close()
		if err != nil {
			return "", err
		}
		io.WriteString(h, "\x00")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return os.MkdirAll(target, 0755)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0644)
	})
}
