package pipeline

import "testing"

func deriveKey(t *testing.T, rawQuery string) string {
	t.Helper()
	cfg, err := parseQuery(t, rawQuery)
	if err != nil {
		t.Fatalf("parse %q: %v", rawQuery, err)
	}
	return CacheKey(cfg, testLimits.DefaultQuality)
}

func TestCacheKeyWidthOnly(t *testing.T) {
	if key := deriveKey(t, "path=test.jpg&w=400"); key != "test__w=400.jpg" {
		t.Fatalf("expected test__w=400.jpg, got %s", key)
	}
}

func TestCacheKeyCollapsesExplicitDefaults(t *testing.T) {
	plain := deriveKey(t, "path=test.jpg&w=400&h=300")
	spelled := deriveKey(t, "path=test.jpg&w=400&h=300&fit=cover&crop=center&q=80")
	if plain != spelled {
		t.Fatalf("expected identical keys, got %s vs %s", plain, spelled)
	}

	if key := deriveKey(t, "path=test.jpg"); key != "test.jpg" {
		t.Fatalf("expected bare key for untransformed request, got %s", key)
	}
}

func TestCacheKeyDistinguishesResolvedFields(t *testing.T) {
	base := "path=test.jpg&w=400&h=300"
	variants := []string{
		"path=test.jpg&w=401&h=300",
		"path=test.jpg&w=400&h=301",
		"path=test.jpg&w=400&h=300&fit=contain",
		"path=test.jpg&w=400&h=300&format=png",
		"path=test.jpg&w=400&h=300&q=55",
		"path=test.jpg&w=400&h=300&bg=ffffff",
		"path=test.jpg&w=400&h=300&crop=top",
	}

	baseKey := deriveKey(t, base)
	seen := map[string]string{baseKey: base}
	for _, variant := range variants {
		key := deriveKey(t, variant)
		if prior, dup := seen[key]; dup {
			t.Fatalf("key collision between %q and %q: %s", prior, variant, key)
		}
		seen[key] = variant
	}
}

func TestCacheKeySeparatorNotForgeableFromPath(t *testing.T) {
	// A literal path spelling out a parameter suffix must not be able
	// to occupy the key a real transform derives. Validation keeps the
	// separator out of paths, so the only source of "__" in a key is
	// the deriver itself.
	transformed := deriveKey(t, "path=img.jpg&w=400")
	if transformed != "img__w=400.jpg" {
		t.Fatalf("unexpected transform key: %s", transformed)
	}
	if _, err := parseQuery(t, "path=img__w%3D400.jpg"); err == nil {
		t.Fatal("expected a path containing the key separator to be rejected")
	}
}

func TestCacheKeyFitAndCropRequireDimensions(t *testing.T) {
	if key := deriveKey(t, "path=test.jpg&fit=contain&crop=top"); key != "test.jpg" {
		t.Fatalf("expected fit/crop to be dropped without dimensions, got %s", key)
	}
	if key := deriveKey(t, "path=test.jpg&w=400&fit=contain"); key != "test__w=400__fit=contain.jpg" {
		t.Fatalf("unexpected key: %s", key)
	}
}

func TestCacheKeyFormatPart(t *testing.T) {
	// Explicit format matching the source extension collapses away.
	if key := deriveKey(t, "path=a.png&format=png&w=10"); key != "a__w=10.png" {
		t.Fatalf("unexpected key: %s", key)
	}
	if key := deriveKey(t, "path=a.jpg&format=png&w=10"); key != "a__w=10__fmt=png.png" {
		t.Fatalf("unexpected key: %s", key)
	}
	// jpeg and jpg extensions infer the same format.
	if key := deriveKey(t, "path=a.jpeg&format=jpeg&w=10"); key != "a__w=10.jpg" {
		t.Fatalf("unexpected key: %s", key)
	}
	// Unrecognized extensions default to jpeg.
	if key := deriveKey(t, "path=a.webp&w=10"); key != "a__w=10.jpg" {
		t.Fatalf("unexpected key: %s", key)
	}
}

func TestCacheKeyStable(t *testing.T) {
	rawQuery := "path=dir/test.jpg&w=400&h=300&fit=contain&q=70&bg=00ff00&crop=left"
	first := deriveKey(t, rawQuery)
	for i := 0; i < 5; i++ {
		if key := deriveKey(t, rawQuery); key != first {
			t.Fatalf("key not deterministic: %s vs %s", first, key)
		}
	}
	if first != "dir/test__w=400__h=300__fit=contain__q=70__bg=00ff00__crop=left.jpg" {
		t.Fatalf("unexpected key layout: %s", first)
	}
}
