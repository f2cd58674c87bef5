package utils

import (
	"bytes"
	"testing"
	"time"
)

func TestMemoryCacheDiskTier(t *testing.T) {
	t.Run("keys with separators survive a restart", func(t *testing.T) {
		dir := t.TempDir()
		c := NewMemoryCache(dir)

		// Proxy cache keys embed whole URLs
		key := "proxy:https://cdn.example.com/reports/q1.pdf"
		c.Set(key, "cached body", time.Minute)

		restarted := NewMemoryCache(dir)
		value, ok := restarted.Get(key)
		if !ok {
			t.Fatal("Expected disk tier to restore the slashed key")
		}
		if value != "cached body" {
			t.Errorf("Expected cached body, got %v", value)
		}
	})

	t.Run("byte values decode after a restart", func(t *testing.T) {
		dir := t.TempDir()
		c := NewMemoryCache(dir)
		payload := []byte("binary attachment bytes")
		c.Set("proxy:https://cdn.example.com/a.bin", payload, time.Minute)

		restarted := NewMemoryCache(dir)
		data, ok := restarted.GetBytes("proxy:https://cdn.example.com/a.bin")
		if !ok {
			t.Fatal("Expected bytes from the disk tier")
		}
		if !bytes.Equal(data, payload) {
			t.Errorf("Expected %q, got %q", payload, data)
		}
	})

	t.Run("delete removes the disk copy", func(t *testing.T) {
		dir := t.TempDir()
		c := NewMemoryCache(dir)
		key := "proxy:https://cdn.example.com/gone.pdf"
		c.Set(key, "cached", time.Minute)
		c.Delete(key)

		restarted := NewMemoryCache(dir)
		if _, ok := restarted.Get(key); ok {
			t.Error("Expected deleted entry to be gone from disk too")
		}
	})

	t.Run("expired disk entries are not restored", func(t *testing.T) {
		dir := t.TempDir()
		c := NewMemoryCache(dir)
		key := "proxy:https://cdn.example.com/stale.pdf"
		c.Set(key, "stale", -time.Second)

		restarted := NewMemoryCache(dir)
		if _, ok := restarted.Get(key); ok {
			t.Error("Expected expired entry to be dropped")
		}
	})
}

func TestMemoryCacheWithoutDiskTier(t *testing.T) {
	c := NewMemoryCache("")
	c.Set("k", "v", time.Minute)

	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Errorf("Expected memory hit, got %v %v", v, ok)
	}
	if c.Size() != 1 {
		t.Errorf("Expected one entry, got %d", c.Size())
	}
	c.Clear()
	if _, ok := c.Get("k"); ok {
		t.Error("Expected clear to drop the entry")
	}
}
