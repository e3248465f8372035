package adapters

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"flakekit/internal/types"
)

// fetchGit clones a git URL into a scratch directory, pins the
// requested revision or branch, and copies the checkout into the store
// under its content hash. The resolved ref carries the exact revision
// and the ancestor count.
func (f *SourceFetcher) fetchGit(ctx context.Context, ref types.FlakeRef) (types.SourceInfo, error) {
	cloneURL := strings.TrimPrefix(ref.URL, "git+")

	scratch, err := os.MkdirTemp("", "flakekit-git-*")
	if err != nil {
		return types.SourceInfo{}, gitFetchError(cloneURL, nil, err)
	}
	defer os.RemoveAll(scratch)

	checkout := filepath.Join(scratch, "src")
	args := []string{"clone", "--quiet"}
	if ref.Ref != "" && ref.Rev == "" {
		args = append(args, "--branch", ref.Ref)
	}
	args = append(args, cloneURL, checkout)
	if out, err := gitCommand(ctx, scratch, args...); err != nil {
		return types.SourceInfo{}, gitFetchError(cloneURL, out, err)
	}
	if ref.Rev != "" {
		if out, err := gitCommand(ctx, checkout, "checkout", "--quiet", ref.Rev); err != nil {
			return types.SourceInfo{}, gitFetchError(cloneURL, out, err)
		}
	}

	revOut, err := gitCommand(ctx, checkout, "rev-parse", "HEAD")
	if err != nil {
		return types.SourceInfo{}, gitFetchError(cloneURL, revOut, err)
	}
	rev := strings.TrimSpace(string(revOut))

	var revCount *uint64
	if countOut, err := gitCommand(ctx, checkout, "rev-list", "--count", "HEAD"); err == nil {
		if n, err := strconv.ParseUint(strings.TrimSpace(string(countOut)), 10, 64); err == nil {
			revCount = &n
		}
	}

	digest, err := hashDir(checkout)
	if err != nil {
		return types.SourceInfo{}, gitFetchError(cloneURL, nil, err)
	}
	if err := f.ensureStore(); err != nil {
		return types.SourceInfo{}, err
	}
	name := strings.TrimSuffix(filepath.Base(cloneURL), ".git")
	storePath := f.storePathFor(digest, name)
	if _, err := os.Stat(storePath); os.IsNotExist(err) {
		if err := copyDir(checkout, storePath); err != nil {
			return types.SourceInfo{}, gitFetchError(cloneURL, nil, err)
		}
	}

	resolved := ref
	resolved.Rev = rev
	return types.SourceInfo{
		ResolvedRef: resolved,
		RevCount:    revCount,
		NarHash:     digest,
		StorePath:   storePath,
	}, nil
}

func gitCommand(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

func gitFetchError(url string, output []byte, cause error) error {
	msg := "git fetch failed: " + url
	if trimmed := strings.TrimSpace(string(output)); trimmed != "" {
		msg += ": " + trimmed
	}
	return errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(msg).
		WithCause(cause)
}
