package cli

import (
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flakekit/internal/core"
)

// ---------- Command tree tests ----------

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCommand()
	names := make([]string, 0, len(root.Commands()))
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	expected := []string{"list", "info", "deps", "update", "pin", "add", "remove"}
	for _, name := range expected {
		assert.Contains(t, names, name, "missing subcommand: %s", name)
	}
}

func TestRootCommandVersion(t *testing.T) {
	root := newRootCommand()
	assert.Equal(t, "dev", root.Version)
}

func TestRootPersistentFlags(t *testing.T) {
	root := newRootCommand()
	flags := []string{
		"config", "log-level", "user-registry",
		"global-registry", "store-dir", "override-flake",
	}
	for _, name := range flags {
		flag := root.PersistentFlags().Lookup(name)
		assert.NotNil(t, flag, "missing flag: %s", name)
	}
}

func TestInfoCommandFlags(t *testing.T) {
	cmd := newInfoCommand()
	assert.NotNil(t, cmd.Flags().Lookup("json"))
}

// ---------- Helper function tests ----------

func TestFlakeRefArg(t *testing.T) {
	assert.Equal(t, ".", flakeRefArg(nil))
	assert.Equal(t, "github:o/r", flakeRefArg([]string{"github:o/r"}))
}

func TestOverrideFlags(t *testing.T) {
	root := newRootCommand()
	list, _, err := root.Find([]string{"list"})
	require.NoError(t, err)
	require.NoError(t, list.ParseFlags([]string{
		"--override-flake", "a=github:o/a",
		"--override-flake", "b=github:o/b",
	}))
	assert.Equal(t, []string{"a=github:o/a", "b=github:o/b"}, overrideFlags(list))
}

func TestDefaultPath(t *testing.T) {
	assert.Equal(t, "/explicit", defaultPath("/explicit", func() (string, error) { return "/base", nil }))
	assert.Equal(t, "/base/flakekit/store", defaultPath("", func() (string, error) { return "/base", nil }, "flakekit", "store"))
}

// ---------- Exit code tests ----------

func TestExitCodeForError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "parse error",
			err:      mustFail(t, func() error { _, err := core.ParseFlakeRef("github:broken"); return err }),
			expected: 2,
		},
		{
			name:     "alias not found",
			err:      core.ErrAliasNotFound("nowhere"),
			expected: 5,
		},
		{
			name:     "not updatable",
			err:      core.ErrNotUpdatable(core.MustParseFlakeRef("github:o/r")),
			expected: 4,
		},
		{
			name: "generic invalid argument",
			err: errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("bad input"),
			expected: 2,
		},
		{
			name: "generic failed precondition",
			err: errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg("nope"),
			expected: 3,
		},
		{
			name:     "fetch failure",
			err:      core.ErrFetch(core.MustParseFlakeRef("github:o/r"), assert.AnError),
			expected: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, exitCodeForError(tt.err))
		})
	}
}

func mustFail(t *testing.T, fn func() error) error {
	t.Helper()
	err := fn()
	require.Error(t, err)
	return err
}
