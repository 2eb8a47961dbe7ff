package environments

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/makeomatic/internal/domain/builderr"
	"github.com/felixgeelhaar/makeomatic/internal/testutil"
)

func match(t *testing.T, root string, patterns ...string) []Match {
	t.Helper()

	inst, err := Discover(context.Background(), root)
	require.NoError(t, err)
	matches, err := inst.Match(context.Background(), patterns)
	require.NoError(t, err)
	return matches
}

func TestMatch_WildcardSkipsDisabled(t *testing.T) {
	t.Parallel()

	root := fixtureTree(t)
	matches := match(t, root, "dep-a-1.?.0")

	require.Len(t, matches, 2)
	seen := make(map[string]bool)
	for _, m := range matches {
		require.Len(t, m, 1)
		folder := m[0].Folder()
		assert.False(t, seen[folder], "folder %s used twice", folder)
		seen[folder] = true
		assert.NotEqual(t, filepath.Join(root, "dep-a-1.2.0"), folder)
	}
	assert.True(t, seen[filepath.Join(root, "dep-a-1.0.0")])
	assert.True(t, seen[filepath.Join(root, "dep-a-1.1.0")])
}

func TestMatch_SingleDependency(t *testing.T) {
	t.Parallel()

	matches := match(t, fixtureTree(t), "dep-a-1.0.0")
	require.Len(t, matches, 1)
	assert.Equal(t, "dep-a-1.0.0", matches[0].Description())
}

func TestMatch_NoMatch(t *testing.T) {
	t.Parallel()

	assert.Empty(t, match(t, fixtureTree(t), "nonsense-1.0.0"))
}

func TestMatch_MissingRoot(t *testing.T) {
	t.Parallel()

	assert.Empty(t, match(t, filepath.Join(t.TempDir(), "missing"), "dep-a-*"))
}

func TestUpwardPath_OutsideRoot(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	inst, err := Discover(context.Background(), root)
	require.NoError(t, err)

	outside := filepath.Join(filepath.Dir(root), "100%done")
	_, err = inst.upwardPath(outside)
	require.Error(t, err)
	assert.Equal(t, builderr.KindFramework, builderr.KindOf(err))
	assert.Contains(t, err.Error(), "dependency folder "+outside+" is outside of "+inst.root)
}

func TestMatch_CombinesLevelsInPatternOrder(t *testing.T) {
	t.Parallel()

	root := fixtureTree(t)

	matches := match(t, root, "dep-a-1.?.0", "dep-b-2.?.0")
	require.Len(t, matches, 4)
	for _, m := range matches {
		require.Len(t, m, 2)
		assert.Equal(t, root, m[0].ContainingFolder())
		assert.Equal(t, filepath.Join(root, "toolchains"), m[1].ContainingFolder())
	}

	reversed := match(t, root, "dep-b-2.?.0", "dep-a-1.?.0")
	require.Len(t, reversed, 4)
	for _, m := range reversed {
		assert.Equal(t, filepath.Join(root, "toolchains"), m[0].ContainingFolder())
		assert.Equal(t, root, m[1].ContainingFolder())
	}
}

func TestMatch_OnlySearchesUpwards(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.EnvironmentTree(t, root, map[string]*testutil.DependencyBuilder{
		"gcc-4.4/qt-4.6":  testutil.NewDependency(),
		"gcc-4.5/qt-4.7":  testutil.NewDependency(),
		"gcc-4.5/boost-1": testutil.NewDependency(),
	})

	// Dependencies in sibling installation folders never combine.
	assert.Len(t, match(t, root, "qt-*", "boost-*"), 1)
	assert.Len(t, match(t, root, "qt-*"), 2)
}

func TestMatch_DeduplicatesFolderSets(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.EnvironmentTree(t, root, map[string]*testutil.DependencyBuilder{
		"dep-a-1.0.0": testutil.NewDependency(),
		"dep-a-1.1.0": testutil.NewDependency(),
	})

	// Both folders satisfy both patterns, so two branches find the same set.
	matches := match(t, root, "dep-a-*", "dep-*")
	require.Len(t, matches, 1)
	assert.ElementsMatch(t,
		[]string{filepath.Join(root, "dep-a-1.0.0"), filepath.Join(root, "dep-a-1.1.0")},
		matches[0].Folders())
}

func TestMatch_NeverReusesAFolder(t *testing.T) {
	t.Parallel()

	assert.Empty(t, match(t, fixtureTree(t), "dep-a-1.0.0", "dep-a-1.0.0"))
}

func TestMatch_InvalidPattern(t *testing.T) {
	t.Parallel()

	inst, err := Discover(context.Background(), fixtureTree(t))
	require.NoError(t, err)

	_, err = inst.Match(context.Background(), []string{"dep-["})
	testutil.AssertErrorKind(t, builderr.KindConfiguration, err)

	_, err = inst.Match(context.Background(), nil)
	testutil.AssertErrorKind(t, builderr.KindConfiguration, err)
}

func TestDiscover_StopsAtEnabledDependencies(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.EnvironmentTree(t, root, map[string]*testutil.DependencyBuilder{
		"outer":           testutil.NewDependency(),
		"outer/inner":     testutil.NewDependency(),
		"off":             testutil.NewDependency().Disabled(),
		"off/nested":      testutil.NewDependency(),
		"plain/deep/leaf": testutil.NewDependency(),
	})
	testutil.WriteTempFile(t, root, "broken/"+MarkerFile, "enabled = perhaps\n")

	inst, err := Discover(context.Background(), root)
	require.NoError(t, err)

	folders := make([]string, 0)
	for _, d := range inst.Dependencies() {
		folders = append(folders, d.Folder())
	}
	assert.Equal(t, []string{
		filepath.Join(root, "off", "nested"),
		filepath.Join(root, "outer"),
		filepath.Join(root, "plain", "deep", "leaf"),
	}, folders)
}
