package adapters

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"flakekit/internal/ports"
	"flakekit/internal/shared"
	"flakekit/internal/types"
)

// SourceFetcher fetches concrete flake references into a local
// content-addressed store directory. Path refs are copied from the
// filesystem, github and tarball refs are downloaded, git refs are
// cloned. Fetching the same concrete identity twice is a no-op that
// returns the existing store path.
type SourceFetcher struct {
	StoreDir string
	Client   *http.Client
}

func NewSourceFetcher(storeDir string) *SourceFetcher {
	return &SourceFetcher{StoreDir: storeDir, Client: http.DefaultClient}
}

func (f *SourceFetcher) Fetch(ctx context.Context, ref types.FlakeRef) (types.SourceInfo, error) {
	switch ref.Kind {
	case types.RefKindPath:
		return f.fetchPath(ctx, ref)
	case types.RefKindConcrete:
		if ref.Scheme == "github" {
			return f.fetchGitHub(ctx, ref)
		}
		if strings.HasPrefix(ref.Scheme, "git") || ref.Scheme == "ssh" {
			return f.fetchGit(ctx, ref)
		}
		return f.fetchTarball(ctx, ref)
	default:
		return types.SourceInfo{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("cannot fetch unresolved alias: " + ref.String())
	}
}

// storePathFor maps a content digest and a human-readable name to the
// store location for an unpacked source.
func (f *SourceFetcher) storePathFor(digest, name string) string {
	return filepath.Join(f.StoreDir, shared.ShortHash(digest)+"-"+name)
}

func (f *SourceFetcher) ensureStore() error {
	if err := os.MkdirAll(f.StoreDir, 0755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create store directory").
			WithCause(err)
	}
	return nil
}

var _ ports.FetcherPort = (*SourceFetcher)(nil)
