package storage

import (
	"errors"
	"testing"

	"dashmail/models"
)

func TestUserStorage(t *testing.T) {
	store, err := NewUserStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewUserStorage failed: %v", err)
	}

	t.Run("create and authenticate", func(t *testing.T) {
		user := &models.User{Username: "alice", DisplayName: "Alice", Role: "user"}
		if err := store.CreateUser(user, "s3cret-pass"); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
		if user.ID == "" {
			t.Error("Expected generated user id")
		}
		if user.PasswordHash == "s3cret-pass" {
			t.Error("Password stored in plain text")
		}

		got, err := store.Authenticate("alice", "s3cret-pass")
		if err != nil {
			t.Fatalf("Authenticate failed: %v", err)
		}
		if got.Username != "alice" {
			t.Errorf("Expected alice, got %q", got.Username)
		}
		if got.LastLoginAt.IsZero() {
			t.Error("Expected login time to be recorded")
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		if _, err := store.Authenticate("alice", "wrong"); err == nil {
			t.Error("Expected authentication failure")
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		if _, err := store.GetUser("nobody"); !errors.Is(err, ErrUserNotFound) {
			t.Errorf("Expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("duplicate username rejected", func(t *testing.T) {
		if err := store.CreateUser(&models.User{Username: "alice"}, "other"); err == nil {
			t.Error("Expected duplicate create to fail")
		}
	})

	t.Run("update password", func(t *testing.T) {
		if err := store.UpdatePassword("alice", "new-pass-123"); err != nil {
			t.Fatalf("UpdatePassword failed: %v", err)
		}
		if _, err := store.Authenticate("alice", "s3cret-pass"); err == nil {
			t.Error("Old password still accepted")
		}
		if _, err := store.Authenticate("alice", "new-pass-123"); err != nil {
			t.Errorf("New password rejected: %v", err)
		}
	})
}

func TestEnsureAdmin(t *testing.T) {
	t.Run("seeds empty store", func(t *testing.T) {
		store, err := NewUserStorage(t.TempDir())
		if err != nil {
			t.Fatalf("NewUserStorage failed: %v", err)
		}

		password, err := store.EnsureAdmin()
		if err != nil {
			t.Fatalf("EnsureAdmin failed: %v", err)
		}
		if password == "" {
			t.Fatal("Expected a generated password")
		}
		admin, err := store.Authenticate("admin", password)
		if err != nil {
			t.Fatalf("Generated password rejected: %v", err)
		}
		if admin.Role != "admin" {
			t.Errorf("Expected admin role, got %q", admin.Role)
		}
	})

	t.Run("no-op on populated store", func(t *testing.T) {
		store, err := NewUserStorage(t.TempDir())
		if err != nil {
			t.Fatalf("NewUserStorage failed: %v", err)
		}
		if err := store.CreateUser(&models.User{Username: "alice"}, "pass"); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}

		password, err := store.EnsureAdmin()
		if err != nil {
			t.Fatalf("EnsureAdmin failed: %v", err)
		}
		if password != "" {
			t.Error("Expected no password for populated store")
		}
		if _, err := store.GetUser("admin"); !errors.Is(err, ErrUserNotFound) {
			t.Error("EnsureAdmin must not create admin when users exist")
		}
	})
}
