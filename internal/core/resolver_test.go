package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"flakekit/internal/types"
)

// fakeWorld backs both resolver ports with an in-memory set of sources
// and manifests, keyed the way the real adapters key them.
type fakeWorld struct {
	mu      sync.Mutex
	sources map[string]types.SourceInfo
	flakes  map[string]types.FlakeMetadata
	fetches map[string]int
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{
		sources: map[string]types.SourceInfo{},
		flakes:  map[string]types.FlakeMetadata{},
		fetches: map[string]int{},
	}
}

// addFlake registers a source at refText together with its evaluated
// manifest. rev, when non-empty, becomes the fetched revision.
func (w *fakeWorld) addFlake(refText, rev, id string, inputs ...types.DeclaredInput) {
	ref := MustParseFlakeRef(refText)
	resolved := ref
	if rev != "" {
		resolved.Rev = rev
	}
	store := "/store/" + id
	w.sources[ref.Key()] = types.SourceInfo{ResolvedRef: resolved, StorePath: store, NarHash: "sha256-" + id}
	w.flakes[store] = types.FlakeMetadata{ID: id, Epoch: 2019, Inputs: inputs}
}

// addSource registers a non-flake source: fetchable, but with no
// manifest behind it.
func (w *fakeWorld) addSource(refText, id string) {
	ref := MustParseFlakeRef(refText)
	w.sources[ref.Key()] = types.SourceInfo{ResolvedRef: ref, StorePath: "/store/" + id, NarHash: "sha256-" + id}
}

func (w *fakeWorld) Fetch(_ context.Context, ref types.FlakeRef) (types.SourceInfo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	src, ok := w.sources[ref.Key()]
	if !ok {
		return types.SourceInfo{}, fmt.Errorf("no such source: %s", ref.String())
	}
	if ref.Rev != "" && src.ResolvedRef.Rev != "" && ref.Rev != src.ResolvedRef.Rev {
		return types.SourceInfo{}, fmt.Errorf("revision %s not available for %s", ref.Rev, ref.Key())
	}
	w.fetches[ref.Key()]++
	return src, nil
}

func (w *fakeWorld) Eval(_ context.Context, src types.SourceInfo) (types.FlakeMetadata, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	meta, ok := w.flakes[src.StorePath]
	if !ok {
		return types.FlakeMetadata{}, fmt.Errorf("no manifest at %s", src.StorePath)
	}
	return meta, nil
}

func (w *fakeWorld) fetchCount(refText string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fetches[MustParseFlakeRef(refText).Key()]
}

func flakeInput(name, refText string) types.DeclaredInput {
	return types.DeclaredInput{Name: name, Ref: MustParseFlakeRef(refText), Flake: true}
}

func sourceInput(name, refText string) types.DeclaredInput {
	return types.DeclaredInput{Name: name, Ref: MustParseFlakeRef(refText)}
}

func emptyChain() RegistryChain {
	return NewRegistryChain(types.Registry{}, types.Registry{}, types.Registry{})
}

const (
	revA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	revB = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func TestResolveSimpleTree(t *testing.T) {
	world := newFakeWorld()
	world.addFlake("github:o/leaf", revA, "leaf")
	world.addFlake("github:o/mid", revA, "mid", flakeInput("leaf", "github:o/leaf"))
	world.addFlake(".", "", "root", flakeInput("mid", "github:o/mid"))

	resolver := NewResolver(world, world, emptyChain())
	node, err := resolver.Resolve(t.Context(), MustParseFlakeRef("."), types.LockModeUseExisting)
	require.NoError(t, err)
	require.Equal(t, "root", node.Flake.ID)

	mid, ok := node.Input("mid")
	require.True(t, ok)
	require.Equal(t, "mid", mid.Flake.ID)
	require.Equal(t, revA, mid.Source.ResolvedRef.Rev)

	leaf, ok := mid.Input("leaf")
	require.True(t, ok)
	require.Equal(t, "leaf", leaf.Flake.ID)
}

func TestResolveSubstitutesAliasChains(t *testing.T) {
	world := newFakeWorld()
	world.addFlake("github:o/dep", revA, "dep")
	world.addFlake(".", "", "root", flakeInput("dep", "alias-a"))

	chain := chainFromPairs(
		nil,
		[][2]string{{"alias-a", "alias-b"}},
		[][2]string{{"alias-b", "github:o/dep"}},
	)
	resolver := NewResolver(world, world, chain)
	node, err := resolver.Resolve(t.Context(), MustParseFlakeRef("."), types.LockModeUseExisting)
	require.NoError(t, err)

	dep, ok := node.Input("dep")
	require.True(t, ok)
	require.Equal(t, "dep", dep.Flake.ID)
}

func TestResolveCyclicAlias(t *testing.T) {
	world := newFakeWorld()
	world.addFlake(".", "", "root", flakeInput("dep", "alias-a"))

	chain := chainFromPairs(
		nil,
		[][2]string{{"alias-a", "alias-b"}},
		[][2]string{{"alias-b", "alias-a"}},
	)
	resolver := NewResolver(world, world, chain)
	_, err := resolver.Resolve(t.Context(), MustParseFlakeRef("."), types.LockModeUseExisting)
	require.Error(t, err)
	require.True(t, IsCyclicAlias(err), "want cyclic alias error, got %v", err)
}

func TestResolveSelfReferentialAlias(t *testing.T) {
	cases := []struct {
		name   string
		target string
	}{
		{name: "bare", target: "loop"},
		{name: "decorated", target: "loop#main"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			world := newFakeWorld()
			world.addFlake(".", "", "root", flakeInput("dep", "loop"))

			chain := chainFromPairs(nil, [][2]string{{"loop", tc.target}}, nil)
			resolver := NewResolver(world, world, chain)
			_, err := resolver.Resolve(t.Context(), MustParseFlakeRef("."), types.LockModeUseExisting)
			require.Error(t, err)
			require.True(t, IsCyclicAlias(err), "want cyclic alias error, got %v", err)
		})
	}
}

func TestResolveUnknownAlias(t *testing.T) {
	world := newFakeWorld()
	world.addFlake(".", "", "root", flakeInput("dep", "nowhere"))

	resolver := NewResolver(world, world, emptyChain())
	_, err := resolver.Resolve(t.Context(), MustParseFlakeRef("."), types.LockModeUseExisting)
	require.Error(t, err)
	require.True(t, IsAliasNotFound(err), "want alias-not-found error, got %v", err)
}

func TestResolveCyclicFlake(t *testing.T) {
	world := newFakeWorld()
	world.addFlake("github:o/x", "", "x", flakeInput("y", "github:o/y"))
	world.addFlake("github:o/y", "", "y", flakeInput("x", "github:o/x"))
	world.addFlake(".", "", "root", flakeInput("x", "github:o/x"))

	resolver := NewResolver(world, world, emptyChain())
	_, err := resolver.Resolve(t.Context(), MustParseFlakeRef("."), types.LockModeUseExisting)
	require.Error(t, err)
	require.True(t, IsCyclicFlake(err), "want cyclic flake error, got %v", err)
}

// rendezvousFetcher delays the fetch of the held refs until all of
// them have been requested, forcing sibling goroutines to claim their
// entries before either recurses.
type rendezvousFetcher struct {
	world   *fakeWorld
	hold    map[string]struct{}
	mu      sync.Mutex
	arrived int
	release chan struct{}
}

func newRendezvousFetcher(world *fakeWorld, refTexts ...string) *rendezvousFetcher {
	hold := map[string]struct{}{}
	for _, text := range refTexts {
		hold[MustParseFlakeRef(text).Key()] = struct{}{}
	}
	return &rendezvousFetcher{world: world, hold: hold, release: make(chan struct{})}
}

func (f *rendezvousFetcher) Fetch(ctx context.Context, ref types.FlakeRef) (types.SourceInfo, error) {
	if _, ok := f.hold[ref.Key()]; ok {
		f.mu.Lock()
		f.arrived++
		if f.arrived == len(f.hold) {
			close(f.release)
		}
		f.mu.Unlock()
		select {
		case <-f.release:
		case <-ctx.Done():
			return types.SourceInfo{}, ctx.Err()
		}
	}
	return f.world.Fetch(ctx, ref)
}

func TestResolveCyclicFlakeConcurrentEntry(t *testing.T) {
	// The root depends on both ends of the x<->y cycle, so two sibling
	// goroutines claim x and y before either recurses and each ends up
	// blocked on the other's in-flight entry. That must surface as a
	// dependency cycle, not hang.
	world := newFakeWorld()
	world.addFlake("github:o/x", "", "x", flakeInput("y", "github:o/y"))
	world.addFlake("github:o/y", "", "y", flakeInput("x", "github:o/x"))
	world.addFlake(".", "", "root",
		flakeInput("x", "github:o/x"),
		flakeInput("y", "github:o/y"),
	)
	fetcher := newRendezvousFetcher(world, "github:o/x", "github:o/y")

	resolver := NewResolver(fetcher, world, emptyChain())
	resolver.Workers = 4

	done := make(chan error, 1)
	go func() {
		_, err := resolver.Resolve(t.Context(), MustParseFlakeRef("."), types.LockModeUseExisting)
		done <- err
	}()
	select {
	case err := <-done:
		require.Error(t, err)
		require.True(t, IsCyclicFlake(err), "want cyclic flake error, got %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("resolution did not terminate on concurrent cycle entry")
	}
}

func TestResolveSelfDependency(t *testing.T) {
	world := newFakeWorld()
	world.addFlake("github:o/x", "", "x", flakeInput("self", "github:o/x"))
	world.addFlake(".", "", "root", flakeInput("x", "github:o/x"))

	resolver := NewResolver(world, world, emptyChain())
	_, err := resolver.Resolve(t.Context(), MustParseFlakeRef("."), types.LockModeUseExisting)
	require.Error(t, err)
	require.True(t, IsCyclicFlake(err), "want cyclic flake error, got %v", err)
}

func TestResolveDiamondFetchesSharedNodeOnce(t *testing.T) {
	world := newFakeWorld()
	world.addFlake("github:o/shared", revA, "shared")
	world.addFlake("github:o/left", revA, "left", flakeInput("shared", "github:o/shared"))
	world.addFlake("github:o/right", revA, "right", flakeInput("shared", "github:o/shared"))
	world.addFlake(".", "", "root",
		flakeInput("left", "github:o/left"),
		flakeInput("right", "github:o/right"),
	)

	resolver := NewResolver(world, world, emptyChain())
	node, err := resolver.Resolve(t.Context(), MustParseFlakeRef("."), types.LockModeUseExisting)
	require.NoError(t, err)
	require.Equal(t, 1, world.fetchCount("github:o/shared"))

	left, _ := node.Input("left")
	right, _ := node.Input("right")
	sharedLeft, ok := left.Input("shared")
	require.True(t, ok)
	sharedRight, ok := right.Input("shared")
	require.True(t, ok)
	require.Same(t, sharedLeft, sharedRight)
}

func TestResolveDeduplicatesByCanonicalIdentity(t *testing.T) {
	// left reaches the shared source by its bare location, right by its
	// pinned revision. The fetch canonicalizes both to the same
	// identity, so the tree carries a single shared node.
	world := newFakeWorld()
	world.addFlake("github:o/shared", revA, "shared")
	world.addFlake(".", "", "root",
		flakeInput("left", "github:o/shared"),
		flakeInput("right", "github:o/shared?rev="+revA),
	)

	resolver := NewResolver(world, world, emptyChain())
	node, err := resolver.Resolve(t.Context(), MustParseFlakeRef("."), types.LockModeUseExisting)
	require.NoError(t, err)

	left, ok := node.Input("left")
	require.True(t, ok)
	right, ok := node.Input("right")
	require.True(t, ok)
	require.Same(t, left, right)
}

func TestResolveNonFlakeInput(t *testing.T) {
	world := newFakeWorld()
	world.addSource("github:o/data", "data")
	world.addFlake(".", "", "root", sourceInput("blob", "github:o/data"))

	resolver := NewResolver(world, world, emptyChain())
	node, err := resolver.Resolve(t.Context(), MustParseFlakeRef("."), types.LockModeUseExisting)
	require.NoError(t, err)
	require.Empty(t, node.Inputs)
	require.Len(t, node.NonFlake, 1)
	require.Equal(t, "blob", node.NonFlake[0].Name)
	require.Equal(t, "/store/data", node.NonFlake[0].Source.StorePath)
}

func TestResolveAppliesLockToRootInputs(t *testing.T) {
	world := newFakeWorld()
	world.addFlake("github:o/latest", revA, "latest")
	world.addFlake("github:o/pinned", revB, "pinned")
	world.addFlake(".", "", "root", flakeInput("dep", "github:o/latest"))

	lock := types.LockFile{Version: types.LockFileVersion}
	lock.Set("dep", MustParseFlakeRef("github:o/pinned?rev="+revB))

	resolver := NewResolver(world, world, emptyChain())
	resolver.Lock = lock

	node, err := resolver.Resolve(t.Context(), MustParseFlakeRef("."), types.LockModeUseExisting)
	require.NoError(t, err)
	dep, ok := node.Input("dep")
	require.True(t, ok)
	require.Equal(t, "pinned", dep.Flake.ID)
	require.Equal(t, 0, world.fetchCount("github:o/latest"))
}

func TestResolveForceUpdateIgnoresLock(t *testing.T) {
	world := newFakeWorld()
	world.addFlake("github:o/latest", revA, "latest")
	world.addFlake("github:o/pinned", revB, "pinned")
	world.addFlake(".", "", "root", flakeInput("dep", "github:o/latest"))

	lock := types.LockFile{Version: types.LockFileVersion}
	lock.Set("dep", MustParseFlakeRef("github:o/pinned?rev="+revB))

	resolver := NewResolver(world, world, emptyChain())
	resolver.Lock = lock

	node, err := resolver.Resolve(t.Context(), MustParseFlakeRef("."), types.LockModeForceUpdate)
	require.NoError(t, err)
	dep, ok := node.Input("dep")
	require.True(t, ok)
	require.Equal(t, "latest", dep.Flake.ID)
	require.Equal(t, 0, world.fetchCount("github:o/pinned"))
}

func TestResolveLockOnlyBindsDirectInputs(t *testing.T) {
	// The pin for "dep" names a root input; the same input name two
	// levels down stays unlocked.
	world := newFakeWorld()
	world.addFlake("github:o/latest", revA, "latest")
	world.addFlake("github:o/pinned", revB, "pinned")
	world.addFlake("github:o/mid", revA, "mid", flakeInput("dep", "github:o/latest"))
	world.addFlake(".", "", "root", flakeInput("mid", "github:o/mid"))

	lock := types.LockFile{Version: types.LockFileVersion}
	lock.Set("dep", MustParseFlakeRef("github:o/pinned?rev="+revB))

	resolver := NewResolver(world, world, emptyChain())
	resolver.Lock = lock

	node, err := resolver.Resolve(t.Context(), MustParseFlakeRef("."), types.LockModeUseExisting)
	require.NoError(t, err)
	mid, _ := node.Input("mid")
	dep, ok := mid.Input("dep")
	require.True(t, ok)
	require.Equal(t, "latest", dep.Flake.ID)
}

func TestResolveFetchFailure(t *testing.T) {
	world := newFakeWorld()
	world.addFlake(".", "", "root", flakeInput("dep", "github:o/missing"))

	resolver := NewResolver(world, world, emptyChain())
	_, err := resolver.Resolve(t.Context(), MustParseFlakeRef("."), types.LockModeUseExisting)
	require.Error(t, err)
	require.True(t, IsFetchError(err), "want fetch error, got %v", err)
}

func TestResolveEvalFailure(t *testing.T) {
	world := newFakeWorld()
	world.addSource("github:o/notaflake", "notaflake")
	world.addFlake(".", "", "root", flakeInput("dep", "github:o/notaflake"))

	resolver := NewResolver(world, world, emptyChain())
	_, err := resolver.Resolve(t.Context(), MustParseFlakeRef("."), types.LockModeUseExisting)
	require.Error(t, err)
	require.True(t, IsEvaluationError(err), "want evaluation error, got %v", err)
}

func TestResolveOne(t *testing.T) {
	world := newFakeWorld()
	world.addFlake("github:o/dep", revA, "dep", flakeInput("never", "github:o/untouched"))

	chain := chainFromPairs(nil, [][2]string{{"dep", "github:o/dep"}}, nil)
	resolver := NewResolver(world, world, chain)

	meta, src, err := resolver.ResolveOne(t.Context(), MustParseFlakeRef("dep"))
	require.NoError(t, err)
	require.Equal(t, "dep", meta.ID)
	require.Equal(t, revA, src.ResolvedRef.Rev)
	// Inputs are reported, not resolved.
	require.Equal(t, 0, world.fetchCount("github:o/untouched"))
}

func TestResolveWideFanOut(t *testing.T) {
	world := newFakeWorld()
	inputs := make([]types.DeclaredInput, 0, 32)
	for i := 0; i < 32; i++ {
		ref := fmt.Sprintf("github:o/dep-%d", i)
		world.addFlake(ref, revA, fmt.Sprintf("dep-%d", i))
		inputs = append(inputs, flakeInput(fmt.Sprintf("dep-%d", i), ref))
	}
	world.addFlake(".", "", "root", inputs...)

	resolver := NewResolver(world, world, emptyChain())
	resolver.Workers = 4
	node, err := resolver.Resolve(t.Context(), MustParseFlakeRef("."), types.LockModeUseExisting)
	require.NoError(t, err)
	require.Len(t, node.Inputs, 32)
	// Declaration order survives concurrent resolution.
	for i, input := range node.Inputs {
		require.Equal(t, fmt.Sprintf("dep-%d", i), input.Name)
	}
}
