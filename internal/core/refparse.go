package core

import (
	"regexp"
	"strings"

	"flakekit/internal/types"
)

// Reference grammar. A bare single-segment token is an alias; anything
// containing a path separator, or the literal ".", is a location; a
// recognized "scheme:" prefix makes the location concrete. Decorations
// append as "#ref" (branch or tag) and "?rev=" (fixed revision).

var (
	aliasPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)
	revPattern   = regexp.MustCompile(`^[0-9a-f]{40}$`)
	schemePrefix = regexp.MustCompile(`^([a-z][a-z0-9+.-]*):(.+)$`)
)

// urlSchemes are the recognized URI location schemes, kept verbatim in
// the parsed ref's URL field.
var urlSchemes = map[string]struct{}{
	"http":          {},
	"https":         {},
	"git":           {},
	"git+http":      {},
	"git+https":     {},
	"git+ssh":       {},
	"ssh":           {},
	"tarball+http":  {},
	"tarball+https": {},
}

// ParseFlakeRef classifies a textual flake reference. Malformed
// scheme-specific syntax is rejected, never guessed around.
func ParseFlakeRef(text string) (types.FlakeRef, error) {
	base := text
	var rev, ref string

	if i := strings.Index(base, "?rev="); i >= 0 {
		rev = base[i+len("?rev="):]
		base = base[:i]
		if !revPattern.MatchString(rev) {
			return types.FlakeRef{}, errParse(text, nil)
		}
	}
	if i := strings.Index(base, "#"); i >= 0 {
		ref = base[i+1:]
		base = base[:i]
		if ref == "" || strings.Contains(ref, "#") {
			return types.FlakeRef{}, errParse(text, nil)
		}
	}
	if base == "" {
		return types.FlakeRef{}, errParse(text, nil)
	}

	// The current-directory marker is always a path, even though it
	// contains no separator.
	if base == "." {
		return types.FlakeRef{Kind: types.RefKindPath, Path: base, Ref: ref, Rev: rev}, nil
	}

	if m := schemePrefix.FindStringSubmatch(base); m != nil {
		scheme, rest := m[1], m[2]
		if scheme == "github" {
			return parseGitHubRef(text, rest, ref, rev)
		}
		if _, ok := urlSchemes[scheme]; ok {
			if !strings.Contains(rest, "/") {
				return types.FlakeRef{}, errParse(text, nil)
			}
			return types.FlakeRef{
				Kind:   types.RefKindConcrete,
				Scheme: scheme,
				URL:    base,
				Ref:    ref,
				Rev:    rev,
			}, nil
		}
		// Unrecognized scheme on something without a separator is not
		// a valid alias either.
		if !strings.Contains(rest, "/") {
			return types.FlakeRef{}, errParse(text, nil)
		}
	}

	if strings.Contains(base, "/") {
		return types.FlakeRef{Kind: types.RefKindPath, Path: base, Ref: ref, Rev: rev}, nil
	}

	if !aliasPattern.MatchString(base) {
		return types.FlakeRef{}, errParse(text, nil)
	}
	return types.FlakeRef{Kind: types.RefKindIndirect, Alias: base, Ref: ref, Rev: rev}, nil
}

// parseGitHubRef handles "github:owner/repo" with an optional third
// segment that is either a fixed revision or a branch/tag.
func parseGitHubRef(text, rest, ref, rev string) (types.FlakeRef, error) {
	parts := strings.Split(rest, "/")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		return types.FlakeRef{}, errParse(text, nil)
	}
	out := types.FlakeRef{
		Kind:   types.RefKindConcrete,
		Scheme: "github",
		Owner:  parts[0],
		Repo:   parts[1],
		Ref:    ref,
		Rev:    rev,
	}
	if len(parts) == 3 {
		seg := parts[2]
		if seg == "" {
			return types.FlakeRef{}, errParse(text, nil)
		}
		if revPattern.MatchString(seg) {
			if out.Rev != "" && out.Rev != seg {
				return types.FlakeRef{}, errParse(text, nil)
			}
			out.Rev = seg
		} else {
			if out.Ref != "" && out.Ref != seg {
				return types.FlakeRef{}, errParse(text, nil)
			}
			out.Ref = seg
		}
	}
	return out, nil
}

// MustParseFlakeRef is a test and fixture helper; it panics on a
// malformed reference.
func MustParseFlakeRef(text string) types.FlakeRef {
	ref, err := ParseFlakeRef(text)
	if err != nil {
		panic(err)
	}
	return ref
}
