// Package password はパスワードのハッシュ化と検証を提供する。
// bcryptによるソルト付き一方向ハッシュを使用し、平文は保存しない。
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost はbcryptのコストファクタの既定値。
const DefaultCost = 10

// maxPasswordBytes はbcryptが受け付けるパスワードの最大バイト数。
const maxPasswordBytes = 72

var (
	// ErrEmptyPassword は空のパスワードをハッシュ化しようとした場合のエラー。
	ErrEmptyPassword = errors.New("password cannot be empty")
	// ErrPasswordTooLong はbcryptの上限を超えるパスワードのエラー。
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
)

// Hasher はパスワードのハッシュ化と検証のインターフェース。
type Hasher interface {
	// Hash は平文パスワードのハッシュを返す。同一入力でも呼び出しごとに異なる値になる。
	Hash(plaintext string) (string, error)
	// Verify は平文パスワードがハッシュと一致するかを返す。
	// 不一致は (false, nil)、ハッシュ自体が不正な場合のみエラーを返す。
	Verify(plaintext, hash string) (bool, error)
}

// BcryptHasher はbcryptを使用したHasherの実装。
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher はBcryptHasherを生成する。
// costが範囲外の場合はDefaultCostを使用する。
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Cost は使用中のコストファクタを返す。
func (h *BcryptHasher) Cost() int {
	return h.cost
}

// Hash は平文パスワードのbcryptハッシュを返す。
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	if err := Validate(plaintext); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify は平文パスワードがbcryptハッシュと一致するかを返す。
// bcryptは先頭72バイトしか比較しないため、それより長い平文は常に不一致とする。
func (h *BcryptHasher) Verify(plaintext, hash string) (bool, error) {
	if len(plaintext) > maxPasswordBytes {
		return false, nil
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("failed to verify password: %w", err)
}

// Validate はパスワードがハッシュ化可能かを検証する。
func Validate(plaintext string) error {
	if plaintext == "" {
		return ErrEmptyPassword
	}
	if len(plaintext) > maxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}

// compile-time interface check
var _ Hasher = (*BcryptHasher)(nil)
