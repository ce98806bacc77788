package corpus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanternhq/lantern/pkg/access"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func TestManifest_Apply(t *testing.T) {
	base := access.Requirement{
		Department:        "HR",
		MinHierarchyLevel: 1,
		SourcePath:        "Docs/HR/Management/plan.txt",
	}

	t.Run("nil manifest leaves the requirement alone", func(t *testing.T) {
		var m *Manifest
		assert.Equal(t, base, m.Apply(base))
	})

	t.Run("absent fields stay derived", func(t *testing.T) {
		got := (&Manifest{Project: strPtr("apollo")}).Apply(base)
		assert.Equal(t, "HR", got.Department)
		assert.Equal(t, "APOLLO", got.Project)
		assert.Equal(t, 1, got.MinHierarchyLevel)
	})

	t.Run("tags normalize to canonical form", func(t *testing.T) {
		got := (&Manifest{
			Department:   strPtr("fin-ance"),
			RequiredRole: strPtr("team lead"),
			RoleContext:  strPtr("Project X"),
		}).Apply(base)
		assert.Equal(t, "FINANCE", got.Department)
		assert.Equal(t, "TEAMLEAD", got.RequiredRole)
		assert.Equal(t, "PROJECTX", got.RoleContext)
	})

	t.Run("empty string clears a dimension", func(t *testing.T) {
		got := (&Manifest{Department: strPtr("")}).Apply(base)
		assert.Empty(t, got.Department)
	})

	t.Run("level override", func(t *testing.T) {
		got := (&Manifest{MinHierarchyLevel: intPtr(3)}).Apply(base)
		assert.Equal(t, 3, got.MinHierarchyLevel)
	})

	t.Run("negative level clamps to zero", func(t *testing.T) {
		got := (&Manifest{MinHierarchyLevel: intPtr(-3)}).Apply(base)
		assert.Equal(t, 0, got.MinHierarchyLevel)
	})
}

func newTestResolver(t *testing.T, scanner *memScanner, manifestName string) *manifestResolver {
	t.Helper()
	objects, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	return newManifestResolver(scanner, objects, manifestName)
}

func TestManifestResolver_NearestAncestorWins(t *testing.T) {
	scanner := newMemScanner()
	scanner.put("Docs/metadata.json", `{"department":"legal"}`)
	scanner.put("Docs/HR/metadata.json", `{"min_hierarchy_level":2}`)
	scanner.put("Docs/HR/Reviews/notes.txt", "cycle notes")
	scanner.put("Docs/Marketing/brief.txt", "campaign")

	resolver := newTestResolver(t, scanner, DefaultManifestName)

	m, err := resolver.ForDocument(context.Background(), "Docs/HR/Reviews/notes.txt")
	require.NoError(t, err)
	require.NotNil(t, m)
	require.NotNil(t, m.MinHierarchyLevel)
	assert.Equal(t, 2, *m.MinHierarchyLevel)
	// The outer manifest never merges in.
	assert.Nil(t, m.Department)

	m, err = resolver.ForDocument(context.Background(), "Docs/Marketing/brief.txt")
	require.NoError(t, err)
	require.NotNil(t, m)
	require.NotNil(t, m.Department)
	assert.Equal(t, "legal", *m.Department)
}

func TestManifestResolver_RootManifest(t *testing.T) {
	scanner := newMemScanner()
	scanner.put("metadata.json", `{"project":"atlas"}`)
	scanner.put("handbook.txt", "welcome")

	resolver := newTestResolver(t, scanner, DefaultManifestName)

	m, err := resolver.ForDocument(context.Background(), "handbook.txt")
	require.NoError(t, err)
	require.NotNil(t, m)
	require.NotNil(t, m.Project)
	assert.Equal(t, "atlas", *m.Project)
}

func TestManifestResolver_NoManifest(t *testing.T) {
	scanner := newMemScanner()
	scanner.put("Docs/HR/a.txt", "x")

	resolver := newTestResolver(t, scanner, DefaultManifestName)

	m, err := resolver.ForDocument(context.Background(), "Docs/HR/a.txt")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestManifestResolver_MemoizesReads(t *testing.T) {
	scanner := newMemScanner()
	scanner.put("Docs/metadata.json", `{"department":"it"}`)
	scanner.put("Docs/a/b/one.txt", "1")
	scanner.put("Docs/a/b/two.txt", "2")
	scanner.put("Docs/c/three.txt", "3")

	resolver := newTestResolver(t, scanner, DefaultManifestName)

	for _, key := range []string{"Docs/a/b/one.txt", "Docs/a/b/two.txt", "Docs/c/three.txt"} {
		m, err := resolver.ForDocument(context.Background(), key)
		require.NoError(t, err)
		require.NotNil(t, m, key)
	}

	assert.Equal(t, 1, scanner.reads("Docs/metadata.json"))
}

func TestManifestResolver_MalformedManifest(t *testing.T) {
	scanner := newMemScanner()
	scanner.put("Docs/metadata.json", "{not json")
	scanner.put("Docs/one.txt", "x")

	resolver := newTestResolver(t, scanner, DefaultManifestName)

	_, err := resolver.ForDocument(context.Background(), "Docs/one.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed manifest")

	// The failed parse is cached like any other resolution.
	_, err = resolver.ForDocument(context.Background(), "Docs/one.txt")
	require.Error(t, err)
	assert.Equal(t, 1, scanner.reads("Docs/metadata.json"))
}

func TestManifestResolver_ReadFailure(t *testing.T) {
	scanner := newMemScanner()
	scanner.put("Docs/metadata.json", `{}`)
	scanner.put("Docs/one.txt", "x")
	scanner.failRead("Docs/metadata.json", errors.New("throttled"))

	resolver := newTestResolver(t, scanner, DefaultManifestName)

	_, err := resolver.ForDocument(context.Background(), "Docs/one.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read manifest")
}

func TestManifestResolver_CustomName(t *testing.T) {
	scanner := newMemScanner()
	scanner.put("Docs/.access.json", `{"department":"hr"}`)
	scanner.put("Docs/x.txt", "x")

	resolver := newTestResolver(t, scanner, ".access.json")

	m, err := resolver.ForDocument(context.Background(), "Docs/x.txt")
	require.NoError(t, err)
	require.NotNil(t, m)
	require.NotNil(t, m.Department)
	assert.Equal(t, "hr", *m.Department)
}
