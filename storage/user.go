package storage

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"dashmail/models"
	"dashmail/utils"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrUserNotFound is returned when a user lookup fails
var ErrUserNotFound = errors.New("user not found")

// UserStorage manages dashboard user persistence
type UserStorage struct {
	dataDir string
	mu      sync.RWMutex
}

// NewUserStorage creates a new user storage instance
func NewUserStorage(dataDir string) (*UserStorage, error) {
	userDir := filepath.Join(dataDir, "users")
	if err := os.MkdirAll(userDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create users directory: %w", err)
	}

	return &UserStorage{
		dataDir: userDir,
	}, nil
}

func (s *UserStorage) userPath(username string) string {
	return filepath.Join(s.dataDir, username+".json")
}

// CreateUser creates a new user with a bcrypt-hashed password
func (s *UserStorage) CreateUser(user *models.User, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Username == "" {
		return fmt.Errorf("username is required")
	}
	if _, err := os.Stat(s.userPath(user.Username)); err == nil {
		return fmt.Errorf("user %s already exists", user.Username)
	}

	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = string(hashedPassword)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	return s.writeUser(user)
}

// GetUser retrieves a user by username
func (s *UserStorage) GetUser(username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readUser(username)
}

// Authenticate verifies a username/password pair and records the login time
func (s *UserStorage) Authenticate(username, password string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.readUser(username)
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}

	user.LastLoginAt = time.Now()
	if err := s.writeUser(user); err != nil {
		utils.Log.Warn("Failed to record login time for %s: %v", username, err)
	}

	return user, nil
}

// UpdatePassword replaces a user's password hash
func (s *UserStorage) UpdatePassword(username, newPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.readUser(username)
	if err != nil {
		return err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = string(hashedPassword)
	user.UpdatedAt = time.Now()

	return s.writeUser(user)
}

// ListUsers returns every stored user
func (s *UserStorage) ListUsers() ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read users directory: %w", err)
	}

	var users []*models.User
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		user, err := s.readUser(entry.Name()[:len(entry.Name())-5])
		if err != nil {
			continue
		}
		users = append(users, user)
	}
	return users, nil
}

// EnsureAdmin creates a default admin user when the store is empty and
// returns the generated password so it can be logged once at start-up
func (s *UserStorage) EnsureAdmin() (string, error) {
	users, err := s.ListUsers()
	if err != nil {
		return "", err
	}
	if len(users) > 0 {
		return "", nil
	}

	raw := make([]byte, 18)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate admin password: %w", err)
	}
	password := base64.URLEncoding.EncodeToString(raw)

	admin := &models.User{
		Username:    "admin",
		DisplayName: "Administrator",
		Role:        "admin",
		Language:    "en",
	}
	if err := s.CreateUser(admin, password); err != nil {
		return "", err
	}
	return password, nil
}

func (s *UserStorage) readUser(username string) (*models.User, error) {
	data, err := os.ReadFile(s.userPath(username))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to read user: %w", err)
	}

	var user models.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return &user, nil
}

func (s *UserStorage) writeUser(user *models.User) error {
	data, err := json.MarshalIndent(user, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	if err := os.WriteFile(s.userPath(user.Username), data, 0600); err != nil {
		return fmt.Errorf("failed to write user file: %w", err)
	}
	return nil
}
