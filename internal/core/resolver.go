package core

import (
	"context"
	"runtime"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"flakekit/internal/ports"
	"flakekit/internal/types"
)

// Resolver turns a flake reference into a fully resolved dependency
// tree: alias substitution to a fixed point, fetch, manifest
// evaluation, and recursion over declared inputs, with deduplication
// and cycle detection keyed on canonical identity.
type Resolver struct {
	Fetcher   ports.FetcherPort
	Evaluator ports.EvaluatorPort
	Chain     RegistryChain

	// Lock holds the pins applied to the root's direct inputs when the
	// root is a path flake and the mode permits it.
	Lock types.LockFile

	// Workers bounds concurrent fetch/eval of sibling inputs.
	// Defaults to the CPU count.
	Workers int
}

func NewResolver(fetcher ports.FetcherPort, evaluator ports.EvaluatorPort, chain RegistryChain) *Resolver {
	return &Resolver{Fetcher: fetcher, Evaluator: evaluator, Chain: chain}
}

// resolveState is the per-call dedup table. Entries are shared across
// worker goroutines and guarded by mu. waits is the wait-for graph
// between in-flight entries: an edge A -> E means A's completion
// awaits E, because a goroutine with A on its ancestor path is blocked
// on E. Edges are refcounted since several goroutines can share an
// ancestor.
type resolveState struct {
	mu      sync.Mutex
	nodes   map[string]*nodeEntry
	waits   map[*nodeEntry]map[*nodeEntry]int
	applyLk bool
	workers int
}

// nodeEntry is one source's resolution slot. A slot can be reachable
// under several keys when the canonical identity discovered by the
// fetch differs from the pre-fetch spelling. owner is non-nil while
// the slot is in flight; done closes when the result lands.
type nodeEntry struct {
	keys  []string
	done  chan struct{}
	node  *types.ResolvedFlake
	err   error
	owner *branchFrame
}

func (e *nodeEntry) onStack(frame *branchFrame) (string, bool) {
	for _, k := range e.keys {
		if _, ok := frame.stack[k]; ok {
			return k, true
		}
	}
	return "", false
}

// branchFrame tracks one chain of recursive resolution: the
// identities currently on its ancestor path. Child goroutines resolve
// with a copy, so the path survives the parent parking in its
// errgroup wait. All mutation happens under the state mutex.
type branchFrame struct {
	stack map[string]struct{}
}

func (f *branchFrame) child() *branchFrame {
	stack := make(map[string]struct{}, len(f.stack))
	for k := range f.stack {
		stack[k] = struct{}{}
	}
	return &branchFrame{stack: stack}
}

// Resolve builds the resolved tree rooted at root. Any failure aborts
// the whole traversal; no partial graph is ever returned.
func (r *Resolver) Resolve(ctx context.Context, root types.FlakeRef, mode types.LockMode) (*types.ResolvedFlake, error) {
	workers := r.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	st := &resolveState{
		nodes:   map[string]*nodeEntry{},
		waits:   map[*nodeEntry]map[*nodeEntry]int{},
		applyLk: root.IsPath() && mode != types.LockModeForceUpdate,
		workers: workers,
	}
	frame := &branchFrame{stack: map[string]struct{}{}}
	node, err := r.resolveRef(ctx, st, frame, root, 0)
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).Debug().
		Str("root", root.String()).
		Int("nodes", len(st.nodes)).
		Msg("flake resolved")
	return node, nil
}

// ResolveOne substitutes, fetches, and evaluates a single flake
// without recursing into its inputs. Used for informational output
// and for pinning an alias to its concrete target.
func (r *Resolver) ResolveOne(ctx context.Context, ref types.FlakeRef) (types.FlakeMetadata, types.SourceInfo, error) {
	cur, err := r.substituteAliases(ref)
	if err != nil {
		return types.FlakeMetadata{}, types.SourceInfo{}, err
	}
	src, err := r.Fetcher.Fetch(ctx, cur)
	if err != nil {
		return types.FlakeMetadata{}, types.SourceInfo{}, ErrFetch(cur, err)
	}
	meta, err := r.Evaluator.Eval(ctx, src)
	if err != nil {
		return types.FlakeMetadata{}, types.SourceInfo{}, ErrEval(src.StorePath, err)
	}
	return meta, src, nil
}

// substituteAliases iterates SubstituteOnce to a fixed point. Every
// step re-enters the full tier chain, so a user-tier alias reached
// through a global-tier target is still subject to flag overrides.
func (r *Resolver) substituteAliases(ref types.FlakeRef) (types.FlakeRef, error) {
	seen := map[string]struct{}{}
	cur := ref
	for cur.IsIndirect() {
		if _, ok := seen[cur.Alias]; ok {
			return types.FlakeRef{}, errCyclicAlias(cur.Alias)
		}
		seen[cur.Alias] = struct{}{}
		next := r.Chain.SubstituteOnce(cur)
		if next.IsIndirect() && next.Alias == cur.Alias {
			if !r.Chain.Contains(cur) {
				// No tier knows this alias; nothing concrete to fetch.
				return types.FlakeRef{}, ErrAliasNotFound(cur.Alias)
			}
			// A tier maps the alias onto itself: a degenerate cycle,
			// not a missing entry.
			return types.FlakeRef{}, errCyclicAlias(cur.Alias)
		}
		cur = next
	}
	return cur, nil
}

func (r *Resolver) resolveRef(ctx context.Context, st *resolveState, frame *branchFrame, ref types.FlakeRef, depth int) (*types.ResolvedFlake, error) {
	cur, err := r.substituteAliases(ref)
	if err != nil {
		return nil, err
	}

	entry, claimed, err := st.claim(frame, cur.Identity())
	if err != nil {
		return nil, err
	}
	if !claimed {
		return entry.node, entry.err
	}

	node, err := r.buildNode(ctx, st, frame, entry, cur, depth)
	st.finish(frame, entry, node, err)
	return node, err
}

func (r *Resolver) buildNode(ctx context.Context, st *resolveState, frame *branchFrame, entry *nodeEntry, cur types.FlakeRef, depth int) (*types.ResolvedFlake, error) {
	src, err := r.Fetcher.Fetch(ctx, cur)
	if err != nil {
		return nil, ErrFetch(cur, err)
	}

	// The fetched ref, with rev filled in, is the canonical identity.
	// When it differs from the pre-fetch spelling, another branch may
	// already have reached the same source by its canonical name.
	canonical := src.ResolvedRef.Identity()
	if canonical != cur.Identity() {
		existing, reused, err := st.adopt(frame, entry, canonical)
		if err != nil {
			return nil, err
		}
		if reused {
			return existing.node, existing.err
		}
	}

	meta, err := r.Evaluator.Eval(ctx, src)
	if err != nil {
		return nil, ErrEval(src.StorePath, err)
	}

	node := &types.ResolvedFlake{Flake: meta, Source: src}
	flakeNodes := make([]*types.ResolvedFlake, len(meta.Inputs))
	leaves := make([]types.SourceInfo, len(meta.Inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(st.workers)
	for i, input := range meta.Inputs {
		declared := input.Ref
		if depth == 0 && st.applyLk {
			if locked, ok := r.Lock.Lookup(input.Name); ok {
				// Frozen regardless of what the registry or the
				// upstream currently resolves to.
				declared = locked
			}
		}
		childFrame := frame.child()
		g.Go(func() error {
			if !input.Flake {
				leaf, err := r.fetchNonFlake(gctx, declared)
				if err != nil {
					return err
				}
				leaves[i] = leaf
				return nil
			}
			child, err := r.resolveRef(gctx, st, childFrame, declared, depth+1)
			if err != nil {
				return err
			}
			flakeNodes[i] = child
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, input := range meta.Inputs {
		if input.Flake {
			node.Inputs = append(node.Inputs, types.ResolvedInput{Name: input.Name, Node: flakeNodes[i]})
		} else {
			node.NonFlake = append(node.NonFlake, types.NonFlakeDep{Name: input.Name, Source: leaves[i]})
		}
	}
	return node, nil
}

// fetchNonFlake resolves a non-flake input to a source leaf: aliases
// still substitute, but nothing is evaluated or recursed into.
func (r *Resolver) fetchNonFlake(ctx context.Context, ref types.FlakeRef) (types.SourceInfo, error) {
	cur, err := r.substituteAliases(ref)
	if err != nil {
		return types.SourceInfo{}, err
	}
	src, err := r.Fetcher.Fetch(ctx, cur)
	if err != nil {
		return types.SourceInfo{}, ErrFetch(cur, err)
	}
	return src, nil
}

// claim registers key as in flight for frame, or resolves the existing
// entry: a finished entry is reused, an in-flight entry on the frame's
// own ancestor path is a dependency cycle, and any other in-flight
// entry is waited on.
func (st *resolveState) claim(frame *branchFrame, key string) (*nodeEntry, bool, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if entry, ok := st.nodes[key]; ok {
		if err := st.waitLocked(frame, entry); err != nil {
			return nil, false, err
		}
		return entry, false, nil
	}
	entry := &nodeEntry{keys: []string{key}, done: make(chan struct{}), owner: frame}
	st.nodes[key] = entry
	frame.stack[key] = struct{}{}
	return entry, true, nil
}

// adopt binds the canonical identity discovered after a fetch to the
// entry already claimed under the pre-fetch spelling. When another
// branch owns or finished that identity, its result is reused instead.
func (st *resolveState) adopt(frame *branchFrame, entry *nodeEntry, key string) (*nodeEntry, bool, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if existing, ok := st.nodes[key]; ok && existing != entry {
		if err := st.waitLocked(frame, existing); err != nil {
			return nil, true, err
		}
		return existing, true, nil
	}
	st.nodes[key] = entry
	entry.keys = append(entry.keys, key)
	frame.stack[key] = struct{}{}
	return entry, false, nil
}

// waitLocked blocks until entry completes. Called with st.mu held;
// releases and reacquires it around the wait. The reachability check
// and the edge registration run in one critical section, so two
// branches arriving at a cycle from opposite ends always see each
// other instead of deadlocking: whichever blocks second finds the
// first's edges leading back onto its own ancestor path.
func (st *resolveState) waitLocked(frame *branchFrame, entry *nodeEntry) error {
	if entry.owner == nil {
		return nil // already finished
	}
	if key, ok := entry.onStack(frame); ok {
		return errCyclicFlake(key)
	}
	if key, ok := st.reachesStack(entry, frame); ok {
		return errCyclicFlake(key)
	}

	ancestors := st.stackEntries(frame)
	for _, ancestor := range ancestors {
		st.addWait(ancestor, entry)
	}
	st.mu.Unlock()
	<-entry.done
	st.mu.Lock()
	for _, ancestor := range ancestors {
		st.removeWait(ancestor, entry)
	}
	return nil
}

// reachesStack walks the wait-for graph from entry and reports
// whether any reachable in-flight entry lies on frame's ancestor
// path. Blocking on such an entry would close a cycle: everything
// entry awaits transitively awaits this branch.
func (st *resolveState) reachesStack(entry *nodeEntry, frame *branchFrame) (string, bool) {
	visited := map[*nodeEntry]struct{}{entry: {}}
	queue := []*nodeEntry{entry}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for next := range st.waits[cur] {
			if _, ok := visited[next]; ok {
				continue
			}
			if key, ok := next.onStack(frame); ok {
				return key, true
			}
			visited[next] = struct{}{}
			queue = append(queue, next)
		}
	}
	return "", false
}

// stackEntries maps frame's ancestor path to its in-flight entries.
func (st *resolveState) stackEntries(frame *branchFrame) []*nodeEntry {
	seen := map[*nodeEntry]struct{}{}
	out := make([]*nodeEntry, 0, len(frame.stack))
	for key := range frame.stack {
		entry, ok := st.nodes[key]
		if !ok || entry.owner == nil {
			continue
		}
		if _, dup := seen[entry]; dup {
			continue
		}
		seen[entry] = struct{}{}
		out = append(out, entry)
	}
	return out
}

func (st *resolveState) addWait(from, to *nodeEntry) {
	edges := st.waits[from]
	if edges == nil {
		edges = map[*nodeEntry]int{}
		st.waits[from] = edges
	}
	edges[to]++
}

func (st *resolveState) removeWait(from, to *nodeEntry) {
	edges := st.waits[from]
	if edges == nil {
		return
	}
	if edges[to] <= 1 {
		delete(edges, to)
		if len(edges) == 0 {
			delete(st.waits, from)
		}
	} else {
		edges[to]--
	}
}

// finish publishes the result, releases the in-flight marker, and pops
// the entry's keys from the resolving frame's ancestor path.
func (st *resolveState) finish(frame *branchFrame, entry *nodeEntry, node *types.ResolvedFlake, err error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	entry.node = node
	entry.err = err
	entry.owner = nil
	for _, key := range entry.keys {
		delete(frame.stack, key)
	}
	close(entry.done)
}
