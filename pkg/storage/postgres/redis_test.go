package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/lanternhq/lantern/pkg/access"
	"github.com/lanternhq/lantern/pkg/storage"
)

// setupRedisClientTest creates a miniredis instance and returns the client and cleanup function
func setupRedisClientTest(t *testing.T) (*RedisClient, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	config := storage.Config{
		RedisURL: "redis://" + mr.Addr(),
		CacheTTL: map[string]time.Duration{
			"profile":     15 * time.Minute,
			"requirement": 1 * time.Hour,
			"search":      2 * time.Minute,
		},
		RedisDB:         0,
		RedisMaxRetries: 3,
		RedisPoolSize:   10,
	}

	client, err := NewRedisClient(config)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create Redis client: %v", err)
	}

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return client, mr, cleanup
}

func TestNewRedisClient_Success(t *testing.T) {
	client, _, cleanup := setupRedisClientTest(t)
	defer cleanup()

	if client == nil {
		t.Fatal("Expected client to be non-nil")
	}

	if client.client == nil {
		t.Fatal("Expected underlying redis client to be non-nil")
	}
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	config := storage.Config{
		RedisURL: "invalid://url",
	}

	_, err := NewRedisClient(config)
	if err == nil {
		t.Fatal("Expected error for invalid Redis URL")
	}
}

func TestNewRedisClient_ConnectionFailure(t *testing.T) {
	config := storage.Config{
		RedisURL: "redis://localhost:9999", // Non-existent server
		CacheTTL: map[string]time.Duration{
			"profile": 15 * time.Minute,
		},
	}

	_, err := NewRedisClient(config)
	if err == nil {
		t.Fatal("Expected connection error")
	}
}

func TestNewRedisClient_WithCustomConfig(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	config := storage.Config{
		RedisURL:        "redis://" + mr.Addr(),
		RedisDB:         2,
		RedisMaxRetries: 5,
		RedisPoolSize:   20,
		CacheTTL: map[string]time.Duration{
			"profile": 15 * time.Minute,
		},
	}

	client, err := NewRedisClient(config)
	if err != nil {
		t.Fatalf("Failed to create Redis client: %v", err)
	}
	defer client.Close()

	if client.config.RedisDB != 2 {
		t.Errorf("Expected RedisDB to be 2, got %d", client.config.RedisDB)
	}
	if client.config.RedisMaxRetries != 5 {
		t.Errorf("Expected RedisMaxRetries to be 5, got %d", client.config.RedisMaxRetries)
	}
	if client.config.RedisPoolSize != 20 {
		t.Errorf("Expected RedisPoolSize to be 20, got %d", client.config.RedisPoolSize)
	}
}

func TestRedisClient_Ping(t *testing.T) {
	client, _, cleanup := setupRedisClientTest(t)
	defer cleanup()

	ctx := context.Background()
	err := client.Ping(ctx)
	if err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func TestRedisClient_GetClient(t *testing.T) {
	client, _, cleanup := setupRedisClientTest(t)
	defer cleanup()

	if client.GetClient() == nil {
		t.Fatal("Expected underlying client to be accessible")
	}
}

func TestRedisClient_GetPoolStats(t *testing.T) {
	client, _, cleanup := setupRedisClientTest(t)
	defer cleanup()

	stats := client.GetPoolStats()
	if stats == nil {
		t.Fatal("Expected pool stats to be non-nil")
	}
}

func TestRedisClient_SetAndGetProfile(t *testing.T) {
	client, mr, cleanup := setupRedisClientTest(t)
	defer cleanup()

	ctx := context.Background()
	profile := &access.Profile{
		Email:          "alice@example.com",
		HierarchyLevel: 2,
		Departments:    []string{"HR", "FINANCE"},
		Projects:       []string{"ALPHA"},
		ContextualRoles: map[string][]string{
			"HR": {"LEAD"},
		},
	}

	if err := client.SetProfile(ctx, profile); err != nil {
		t.Fatalf("SetProfile failed: %v", err)
	}

	if !mr.Exists("profile:alice@example.com") {
		t.Fatal("Expected profile key to exist in redis")
	}

	got, err := client.GetProfile(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected cached profile, got nil")
	}

	if got.Email != "alice@example.com" {
		t.Errorf("Email = %q, want %q", got.Email, "alice@example.com")
	}
	if got.HierarchyLevel != 2 {
		t.Errorf("HierarchyLevel = %d, want 2", got.HierarchyLevel)
	}
	if len(got.Departments) != 2 || got.Departments[0] != "HR" {
		t.Errorf("Departments = %v, want [HR FINANCE]", got.Departments)
	}
	if len(got.ContextualRoles["HR"]) != 1 || got.ContextualRoles["HR"][0] != "LEAD" {
		t.Errorf("ContextualRoles = %v, want HR:[LEAD]", got.ContextualRoles)
	}
}

func TestRedisClient_GetProfile_NotFound(t *testing.T) {
	client, _, cleanup := setupRedisClientTest(t)
	defer cleanup()

	got, err := client.GetProfile(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatalf("Expected cache miss without error, got: %v", err)
	}
	if got != nil {
		t.Fatalf("Expected nil on cache miss, got %v", got)
	}
}

func TestRedisClient_GetProfile_CorruptData(t *testing.T) {
	client, mr, cleanup := setupRedisClientTest(t)
	defer cleanup()

	mr.Set("profile:alice@example.com", "{not-json")

	_, err := client.GetProfile(context.Background(), "alice@example.com")
	if err == nil {
		t.Fatal("Expected error for corrupt cache data")
	}

	// Corrupt entries are evicted so the next read goes to the database
	if mr.Exists("profile:alice@example.com") {
		t.Error("Expected corrupt key to be deleted")
	}
}

func TestRedisClient_InvalidateProfile(t *testing.T) {
	client, mr, cleanup := setupRedisClientTest(t)
	defer cleanup()

	ctx := context.Background()
	profile := &access.Profile{Email: "alice@example.com", HierarchyLevel: 1}

	if err := client.SetProfile(ctx, profile); err != nil {
		t.Fatalf("SetProfile failed: %v", err)
	}
	if err := client.InvalidateProfile(ctx, "alice@example.com"); err != nil {
		t.Fatalf("InvalidateProfile failed: %v", err)
	}

	if mr.Exists("profile:alice@example.com") {
		t.Error("Expected profile key to be removed")
	}
}

func TestRedisClient_SetAndGetRequirement(t *testing.T) {
	client, _, cleanup := setupRedisClientTest(t)
	defer cleanup()

	ctx := context.Background()
	req := &access.Requirement{
		Project:      "ALPHA",
		RequiredRole: "LEAD",
		RoleContext:  "ALPHA",
		SourcePath:   "Docs/Projects/Alpha/plan.txt",
	}

	if err := client.SetRequirement(ctx, "docs/projects/alpha/plan.txt", req); err != nil {
		t.Fatalf("SetRequirement failed: %v", err)
	}

	got, err := client.GetRequirement(ctx, "docs/projects/alpha/plan.txt")
	if err != nil {
		t.Fatalf("GetRequirement failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected cached requirement, got nil")
	}
	if got.Project != "ALPHA" || got.RequiredRole != "LEAD" {
		t.Errorf("Requirement = %+v, want project ALPHA role LEAD", got)
	}
}

func TestRedisClient_GetRequirement_NotFound(t *testing.T) {
	client, _, cleanup := setupRedisClientTest(t)
	defer cleanup()

	got, err := client.GetRequirement(context.Background(), "docs/unknown.txt")
	if err != nil {
		t.Fatalf("Expected cache miss without error, got: %v", err)
	}
	if got != nil {
		t.Fatalf("Expected nil on cache miss, got %v", got)
	}
}

func TestRedisClient_SearchResults(t *testing.T) {
	client, _, cleanup := setupRedisClientTest(t)
	defer cleanup()

	ctx := context.Background()
	docs := []*storage.Document{
		{DocKey: "docs/finance/budget.txt", Title: "Budget 2025", Department: "FINANCE"},
	}

	if err := client.SetSearchResults(ctx, "Budget", 10, docs); err != nil {
		t.Fatalf("SetSearchResults failed: %v", err)
	}

	// Lookup is case-insensitive because the key normalizes the term
	got, err := client.GetSearchResults(ctx, "budget", 10)
	if err != nil {
		t.Fatalf("GetSearchResults failed: %v", err)
	}
	if len(got) != 1 || got[0].DocKey != "docs/finance/budget.txt" {
		t.Errorf("SearchResults = %v, want one budget document", got)
	}

	// A different limit is a different cache entry
	miss, err := client.GetSearchResults(ctx, "budget", 20)
	if err != nil {
		t.Fatalf("GetSearchResults failed: %v", err)
	}
	if miss != nil {
		t.Errorf("Expected miss for different limit, got %v", miss)
	}
}

func TestRedisClient_InvalidatePatterns(t *testing.T) {
	client, mr, cleanup := setupRedisClientTest(t)
	defer cleanup()

	ctx := context.Background()
	mr.Set("profile:a@example.com", "{}")
	mr.Set("profile:b@example.com", "{}")
	mr.Set("requirement:docs/x.txt", "{}")

	if err := client.InvalidatePatterns(ctx, "profile:*"); err != nil {
		t.Fatalf("InvalidatePatterns failed: %v", err)
	}

	if mr.Exists("profile:a@example.com") || mr.Exists("profile:b@example.com") {
		t.Error("Expected profile keys to be removed")
	}
	if !mr.Exists("requirement:docs/x.txt") {
		t.Error("Expected requirement key to survive")
	}
}

func TestRedisClient_InvalidatePatterns_NoMatches(t *testing.T) {
	client, _, cleanup := setupRedisClientTest(t)
	defer cleanup()

	if err := client.InvalidatePatterns(context.Background(), "profile:*"); err != nil {
		t.Fatalf("InvalidatePatterns on empty keyspace failed: %v", err)
	}
}

func TestRedisClient_Incr(t *testing.T) {
	client, _, cleanup := setupRedisClientTest(t)
	defer cleanup()

	ctx := context.Background()

	count, err := client.Incr(ctx, "ratelimit:alice@example.com")
	if err != nil {
		t.Fatalf("Incr failed: %v", err)
	}
	if count != 1 {
		t.Errorf("First Incr = %d, want 1", count)
	}

	count, err = client.Incr(ctx, "ratelimit:alice@example.com")
	if err != nil {
		t.Fatalf("Incr failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Second Incr = %d, want 2", count)
	}
}

func TestRedisClient_Expire(t *testing.T) {
	client, mr, cleanup := setupRedisClientTest(t)
	defer cleanup()

	ctx := context.Background()

	if _, err := client.Incr(ctx, "ratelimit:bob@example.com"); err != nil {
		t.Fatalf("Incr failed: %v", err)
	}
	if err := client.Expire(ctx, "ratelimit:bob@example.com", 1*time.Minute); err != nil {
		t.Fatalf("Expire failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if mr.Exists("ratelimit:bob@example.com") {
		t.Error("Expected key to expire")
	}
}

func TestRedisClient_TTL(t *testing.T) {
	client, _, cleanup := setupRedisClientTest(t)
	defer cleanup()

	ctx := context.Background()

	if _, err := client.Incr(ctx, "ratelimit:carol@example.com"); err != nil {
		t.Fatalf("Incr failed: %v", err)
	}
	if err := client.Expire(ctx, "ratelimit:carol@example.com", 1*time.Minute); err != nil {
		t.Fatalf("Expire failed: %v", err)
	}

	ttl, err := client.TTL(ctx, "ratelimit:carol@example.com")
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 0 || ttl > 1*time.Minute {
		t.Errorf("TTL = %v, want within (0, 1m]", ttl)
	}
}

func TestRedisClient_TTL_NoExpiration(t *testing.T) {
	client, mr, cleanup := setupRedisClientTest(t)
	defer cleanup()

	mr.Set("permanent", "1")

	ttl, err := client.TTL(context.Background(), "permanent")
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl != -1 {
		t.Errorf("TTL = %v, want -1 for key without expiration", ttl)
	}
}

func TestRedisClient_TTL_NonExistentKey(t *testing.T) {
	client, _, cleanup := setupRedisClientTest(t)
	defer cleanup()

	ttl, err := client.TTL(context.Background(), "missing")
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl != -2 {
		t.Errorf("TTL = %v, want -2 for missing key", ttl)
	}
}

func TestRedisClient_SetNX(t *testing.T) {
	client, _, cleanup := setupRedisClientTest(t)
	defer cleanup()

	ctx := context.Background()

	ok, err := client.SetNX(ctx, "lock:sync", "holder-1", 1*time.Minute)
	if err != nil {
		t.Fatalf("SetNX failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected first SetNX to succeed")
	}

	ok, err = client.SetNX(ctx, "lock:sync", "holder-2", 1*time.Minute)
	if err != nil {
		t.Fatalf("SetNX failed: %v", err)
	}
	if ok {
		t.Fatal("Expected second SetNX to fail while lock is held")
	}
}
