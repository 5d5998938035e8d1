package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hitoshi/accountd/internal/client/api"
)

// Store はログイン中のユーザーを永続化する。
// Loadはユーザーが保存されていない場合nil, nilを返す。
type Store interface {
	Load() (*api.User, error)
	Save(user *api.User) error
	Clear() error
}

// persisted はセッションファイルのJSON形式。
type persisted struct {
	User *api.User `json:"user"`
}

// FileStore はセッションを0600のJSONファイルに保存するStore。
type FileStore struct {
	path string
}

// NewFileStore はFileStoreを生成する。
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path はセッションファイルのパスを返す。
func (s *FileStore) Path() string {
	return s.path
}

// Load はセッションファイルを読み込む。ファイルが存在しない場合はnil, nilを返す。
func (s *FileStore) Load() (*api.User, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	return p.User, nil
}

// Save はユーザーをセッションファイルに書き込む。
// 一時ファイルに書いてからrenameするため、途中で失敗しても既存ファイルは壊れない。
func (s *FileStore) Save(user *api.User) error {
	data, err := json.MarshalIndent(persisted{User: user}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp session file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod session file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close session file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

// Clear はセッションファイルを削除する。存在しない場合も成功とする。
func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
