// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

package cache

import (
	"testing"
	"time"
)

func TestGetSet(t *testing.T) {
	c := New(time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("Get() found a key that was never set")
	}

	c.Set("groups", []string{"c1", "c2"})
	got, ok := c.Get("groups")
	if !ok {
		t.Fatal("Get() missed a freshly set key")
	}
	if groups := got.([]string); len(groups) != 2 {
		t.Errorf("got %v, want 2 entries", groups)
	}
}

func TestExpiration(t *testing.T) {
	c := New(time.Minute)
	c.SetWithTTL("short", "value", 10*time.Millisecond)

	if _, ok := c.Get("short"); !ok {
		t.Fatal("entry expired before its TTL")
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("short"); ok {
		t.Error("entry survived past its TTL")
	}
}

func TestClear(t *testing.T) {
	c := New(time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Clear()

	if _, ok := c.Get("a"); ok {
		t.Error("Clear() left entries behind")
	}
	if stats := c.GetStats(); stats.TotalKeys != 0 {
		t.Errorf("TotalKeys = %d after Clear(), want 0", stats.TotalKeys)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	c := New(time.Minute)
	c.Set("a", 1)
	c.Delete("a")
	c.Delete("a")

	if _, ok := c.Get("a"); ok {
		t.Error("Delete() did not remove the entry")
	}
}

func TestHitRate(t *testing.T) {
	c := New(time.Minute)
	c.Set("a", 1)

	c.Get("a")
	c.Get("a")
	c.Get("missing")

	if rate := c.HitRate(); rate < 66 || rate > 67 {
		t.Errorf("HitRate() = %.2f, want about 66.67", rate)
	}
}

func TestGenerateKey(t *testing.T) {
	type query struct {
		SyncID string
		Past   string
		Future string
	}

	k1 := GenerateKey("groups", query{"family", "7d", "0d"})
	k2 := GenerateKey("groups", query{"family", "7d", "0d"})
	k3 := GenerateKey("groups", query{"family", "24h", "0d"})

	if k1 != k2 {
		t.Error("identical params produced different keys")
	}
	if k1 == k3 {
		t.Error("different params produced the same key")
	}
}
