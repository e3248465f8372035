package adapters

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/cenkalti/backoff/v4"

	"flakekit/internal/shared"
	"flakekit/internal/types"
)

var hexRevSuffix = regexp.MustCompile(`-([0-9a-f]{40})$`)

// fetchGitHub downloads a repository tarball from codeload, pinned to
// the ref's revision when one is carried, otherwise to the branch/tag
// or the default branch.
func (f *SourceFetcher) fetchGitHub(ctx context.Context, ref types.FlakeRef) (types.SourceInfo, error) {
	target := "HEAD"
	switch {
	case ref.Rev != "":
		target = ref.Rev
	case ref.Ref != "":
		target = ref.Ref
	}
	url := fmt.Sprintf("https://codeload.github.com/%s/%s/tar.gz/%s", ref.Owner, ref.Repo, target)

	body, err := f.download(ctx, url)
	if err != nil {
		return types.SourceInfo{}, err
	}
	digest := shared.HashHex(body)
	if err := f.ensureStore(); err != nil {
		return types.SourceInfo{}, err
	}
	storePath := f.storePathFor(digest, ref.Repo)
	topDir, err := f.unpackTarball(body, storePath)
	if err != nil {
		return types.SourceInfo{}, err
	}

	resolved := ref
	// Codeload names the top-level directory "<repo>-<rev>" for commit
	// downloads; recover the revision from it when we don't have one.
	if resolved.Rev == "" {
		if m := hexRevSuffix.FindStringSubmatch(topDir); m != nil {
			resolved.Rev = m[1]
		}
	}
	return types.SourceInfo{
		ResolvedRef: resolved,
		NarHash:     digest,
		StorePath:   storePath,
	}, nil
}

// fetchTarball downloads and unpacks a plain tarball URL.
func (f *SourceFetcher) fetchTarball(ctx context.Context, ref types.FlakeRef) (types.SourceInfo, error) {
	url := strings.TrimPrefix(ref.URL, "tarball+")
	body, err := f.download(ctx, url)
	if err != nil {
		return types.SourceInfo{}, err
	}
	digest := shared.HashHex(body)
	if err := f.ensureStore(); err != nil {
		return types.SourceInfo{}, err
	}
	name := filepath.Base(url)
	name = strings.TrimSuffix(strings.TrimSuffix(name, ".tar.gz"), ".tgz")
	storePath := f.storePathFor(digest, name)
	if _, err := f.unpackTarball(body, storePath); err != nil {
		return types.SourceInfo{}, err
	}
	return types.SourceInfo{
		ResolvedRef: ref,
		NarHash:     digest,
		StorePath:   storePath,
	}, nil
}

// download GETs url with exponential backoff on transient failures.
// Retry policy lives here, in the fetch collaborator, not in the
// resolver.
func (f *SourceFetcher) download(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := f.Client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return shared.HTTPStatusError(resp.StatusCode, url)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(shared.HTTPStatusError(resp.StatusCode, url))
		}
		body, err = io.ReadAll(resp.Body)
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(500*time.Millisecond),
	), 4), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("download failed: " + url).
			WithCause(err)
	}
	return body, nil
}

// unpackTarball extracts a gzipped tarball into storePath, stripping
// the single top-level directory. Returns the stripped directory name.
// An already-populated store path is left as is.
func (f *SourceFetcher) unpackTarball(body []byte, storePath string) (string, error) {
	gz, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("not a gzipped tarball").
			WithCause(err)
	}
	defer gz.Close()

	exists := false
	if _, err := os.Stat(storePath); err == nil {
		exists = true
	}

	topDir := ""
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("corrupt tarball").
				WithCause(err)
		}
		name := filepath.Clean(hdr.Name)
		if strings.HasPrefix(name, "..") || filepath.IsAbs(name) {
			return "", errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("tarball entry escapes archive root: " + hdr.Name)
		}
		parts := strings.SplitN(name, string(filepath.Separator), 2)
		if topDir == "" {
			topDir = parts[0]
		}
		if exists || len(parts) < 2 {
			continue
		}
		target := filepath.Join(storePath, parts[1])
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return "", err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return "", err
			}
			data, err := io.ReadAll(tr)
			if err != nil {
				return "", err
			}
			if err := os.WriteFile(target, data, os.FileMode(hdr.Mode)&0777); err != nil {
				return "", err
			}
		}
	}
	return topDir, nil
}
