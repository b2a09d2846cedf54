package cache

import (
	"testing"
	"time"
)

// TestMemoryStore_SetGet は値の格納と取得を検証する。
func TestMemoryStore_SetGet(t *testing.T) {
	s := NewMemoryStore(time.Minute, time.Minute)
	defer s.Stop()

	s.Set("k1", []byte("v1"), 0)

	got, ok := s.Get("k1")
	if !ok {
		t.Fatal("expected hit for k1, got miss")
	}
	if string(got) != "v1" {
		t.Errorf("value = %q, want %q", got, "v1")
	}
}

// TestMemoryStore_Get_Missing は未格納キーがミスになることを検証する。
func TestMemoryStore_Get_Missing(t *testing.T) {
	s := NewMemoryStore(time.Minute, time.Minute)
	defer s.Stop()

	if _, ok := s.Get("missing"); ok {
		t.Error("expected miss for missing key, got hit")
	}
}

// TestMemoryStore_TTLExpiry は期限切れエントリがミスになることを検証する。
func TestMemoryStore_TTLExpiry(t *testing.T) {
	s := NewMemoryStore(time.Minute, time.Minute)
	defer s.Stop()

	s.Set("k1", []byte("v1"), 10*time.Millisecond)

	time.Sleep(30 * time.Millisecond)

	if _, ok := s.Get("k1"); ok {
		t.Error("expected miss after TTL expiry, got hit")
	}
}

// TestMemoryStore_Delete はキー削除を検証する。
func TestMemoryStore_Delete(t *testing.T) {
	s := NewMemoryStore(time.Minute, time.Minute)
	defer s.Stop()

	s.Set("k1", []byte("v1"), 0)
	s.Delete("k1")

	if _, ok := s.Get("k1"); ok {
		t.Error("expected miss after Delete, got hit")
	}

	// 存在しないキーの削除はno-op
	s.Delete("missing")
}

// TestMemoryStore_DeleteByPrefix はプレフィックス一括削除を検証する。
// ユーザースコープのビュー無効化で使用するパス。
func TestMemoryStore_DeleteByPrefix(t *testing.T) {
	s := NewMemoryStore(time.Minute, time.Minute)
	defer s.Stop()

	s.Set(KeyUserClassProgress("user-1", "class-1"), []byte("a"), 0)
	s.Set(KeyUserBookmarks("user-1"), []byte("b"), 0)
	s.Set(KeyUserBookmarks("user-2"), []byte("c"), 0)
	s.Set(KeyClassList(), []byte("d"), 0)

	s.DeleteByPrefix(UserPrefix("user-1"))

	if _, ok := s.Get(KeyUserClassProgress("user-1", "class-1")); ok {
		t.Error("expected user-1 progress key to be invalidated")
	}
	if _, ok := s.Get(KeyUserBookmarks("user-1")); ok {
		t.Error("expected user-1 bookmarks key to be invalidated")
	}
	if _, ok := s.Get(KeyUserBookmarks("user-2")); !ok {
		t.Error("expected user-2 bookmarks key to survive")
	}
	if _, ok := s.Get(KeyClassList()); !ok {
		t.Error("expected shared class list key to survive")
	}
}

// TestMemoryStore_CleanupRemovesExpired はジャニターによる物理削除を検証する。
func TestMemoryStore_CleanupRemovesExpired(t *testing.T) {
	s := NewMemoryStore(time.Minute, time.Minute)
	defer s.Stop()

	s.Set("k1", []byte("v1"), 5*time.Millisecond)
	s.Set("k2", []byte("v2"), time.Minute)

	time.Sleep(20 * time.Millisecond)
	s.cleanup()

	if s.Len() != 1 {
		t.Errorf("Len() = %d after cleanup, want 1", s.Len())
	}
}

// TestMemoryStore_StopIsIdempotent はStopの多重呼び出しが安全なことを検証する。
func TestMemoryStore_StopIsIdempotent(t *testing.T) {
	s := NewMemoryStore(time.Minute, time.Minute)
	s.Stop()
	s.Stop()
}
