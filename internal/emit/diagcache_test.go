package emit

import (
	"reflect"
	"testing"

	"ember/internal/diag"
	"ember/internal/source"
)

func TestDiagCachePutGet(t *testing.T) {
	c, err := OpenDiagCacheAt(t.TempDir())
	if err != nil {
		t.Fatalf("OpenDiagCacheAt: %v", err)
	}
	key := DigestBytes([]byte("program-v1"))
	items := []diag.Diagnostic{
		{
			Severity: diag.SevError,
			Code:     diag.FlowMissingReturn,
			Message:  "not all code paths return a value",
			Primary:  source.Span{File: 1, Start: 10, End: 20},
		},
		{
			Severity: diag.SevWarning,
			Code:     diag.CompileUnusedField,
			Message:  "field App.T.x is never used",
		},
	}
	if err := c.Put(key, "app", items); err != nil {
		t.Fatalf("Put: %v", err)
	}

	bag := diag.NewBag(0)
	hit, err := c.Get(key, bag)
	if err != nil || !hit {
		t.Fatalf("Get = %v, %v, want hit", hit, err)
	}
	got := bag.Items()
	if len(got) != 2 {
		t.Fatalf("replayed %d diagnostics, want 2", len(got))
	}
	if !reflect.DeepEqual(got, items) {
		t.Fatalf("replayed diagnostics differ: %+v", got)
	}
}

func TestDiagCacheMissOnOtherDigest(t *testing.T) {
	c, err := OpenDiagCacheAt(t.TempDir())
	if err != nil {
		t.Fatalf("OpenDiagCacheAt: %v", err)
	}
	if err := c.Put(DigestBytes([]byte("v1")), "app", nil); err != nil {
		t.Fatalf("Put: %v", err)
	}
	bag := diag.NewBag(0)
	hit, err := c.Get(DigestBytes([]byte("v2")), bag)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if hit || bag.Len() != 0 {
		t.Fatalf("changed program hit the cache")
	}
}

func TestDiagCacheNilIsSafe(t *testing.T) {
	var c *DiagCache
	if err := c.Put(Digest{}, "app", nil); err != nil {
		t.Fatalf("nil Put: %v", err)
	}
	hit, err := c.Get(Digest{}, diag.NewBag(0))
	if err != nil || hit {
		t.Fatalf("nil Get = %v, %v", hit, err)
	}
}

func TestDigestIsStable(t *testing.T) {
	a := DigestBytes([]byte("same"))
	b := DigestBytes([]byte("same"))
	if a != b {
		t.Fatalf("digest of identical bytes differs")
	}
	if a == DigestBytes([]byte("other")) {
		t.Fatalf("digest collision on different bytes")
	}
}
