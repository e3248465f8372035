package types

import "fmt"

// FlakeRef is a tagged reference to a flake source. The Kind selects
// which location fields are meaningful; Ref and Rev decorations may be
// carried on any kind.
type FlakeRef struct {
	Kind RefKind

	// Path is set for path refs.
	Path string

	// Concrete refs: github-style refs populate Scheme, Owner and Repo;
	// generic URL refs populate Scheme and URL.
	Scheme string
	Owner  string
	Repo   string
	URL    string

	// Alias is set for indirect refs.
	Alias string

	// Ref is an optional branch or tag name.
	Ref string

	// Rev is an optional fixed revision (40-char hex).
	Rev string
}

func (r FlakeRef) IsPath() bool     { return r.Kind == RefKindPath }
func (r FlakeRef) IsConcrete() bool { return r.Kind == RefKindConcrete }
func (r FlakeRef) IsIndirect() bool { return r.Kind == RefKindIndirect }

// location returns the undecorated location text for the ref.
func (r FlakeRef) location() string {
	switch r.Kind {
	case RefKindPath:
		return r.Path
	case RefKindIndirect:
		return r.Alias
	case RefKindConcrete:
		if r.Owner != "" {
			return fmt.Sprintf("%s:%s/%s", r.Scheme, r.Owner, r.Repo)
		}
		return r.URL
	default:
		return ""
	}
}

// Key returns the registry lookup key. Registries key strictly on the
// alias or location, never on Ref/Rev decorations, so "same alias,
// track latest" entries keep working when callers carry a branch.
func (r FlakeRef) Key() string {
	return string(r.Kind) + ":" + r.location()
}

// Identity returns the canonical identity used for deduplication and
// cycle detection: the location plus the fixed revision.
func (r FlakeRef) Identity() string {
	return r.Key() + "@" + r.Rev
}

// String renders the ref in the textual grammar accepted by
// core.ParseFlakeRef. Decorations append as "#ref" and "?rev=".
func (r FlakeRef) String() string {
	s := r.location()
	if r.Ref != "" {
		s += "#" + r.Ref
	}
	if r.Rev != "" {
		s += "?rev=" + r.Rev
	}
	return s
}

// WithDecorations copies the ref/rev decorations from d onto r when r
// does not already pin them. Used when an alias carrying a branch is
// substituted by a registry target.
func (r FlakeRef) WithDecorations(d FlakeRef) FlakeRef {
	out := r
	if out.Rev == "" && d.Rev != "" {
		out.Rev = d.Rev
	}
	if out.Ref == "" && d.Ref != "" {
		out.Ref = d.Ref
	}
	return out
}
