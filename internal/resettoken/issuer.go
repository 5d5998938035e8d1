// Package resettoken はパスワードリセット用の署名付きトークンを発行・検証する。
// トークンはHS256で署名されたJWTで、サーバー側に状態を持たない。
package resettoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTTL はトークンの既定の有効期間。
const DefaultTTL = time.Hour

// MinSecretLength は署名鍵に要求する最小バイト数。
const MinSecretLength = 32

var (
	// ErrExpiredToken はトークンの有効期限が切れている場合のエラー。
	ErrExpiredToken = errors.New("reset token expired")
	// ErrInvalidSignature は署名不一致や形式不正など、期限切れ以外の検証失敗を表す。
	ErrInvalidSignature = errors.New("reset token signature invalid")
	// ErrSecretTooShort は署名鍵が短すぎる場合のエラー。
	ErrSecretTooShort = errors.New("reset token secret must be at least 32 bytes")
)

// Claims はリセットトークンのペイロード。
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// Token は発行されたトークンを表す。
type Token struct {
	Value     string
	ID        string // jti
	ExpiresAt time.Time
}

// Issuer はリセットトークンの発行と検証を行う。
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// Option はIssuerの設定オプション。
type Option func(*Issuer)

// WithClock は現在時刻の取得関数を差し替える。
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

// NewIssuer はIssuerを生成する。ttlが0以下の場合はDefaultTTLを使用する。
func NewIssuer(secret []byte, ttl time.Duration, opts ...Option) (*Issuer, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	i := &Issuer{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}

	i.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return i.now() }),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
	)
	return i, nil
}

// TTL はトークンの有効期間を返す。
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue はemailに紐づくリセットトークンを発行する。
func (i *Issuer) Issue(email string) (*Token, error) {
	now := i.now()
	id := uuid.NewString()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Email: email,
	}

	value, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign reset token: %w", err)
	}

	return &Token{
		Value:     value,
		ID:        id,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Verify はトークンの署名と有効期限を検証し、ペイロードを返す。
// 期限切れはErrExpiredToken、それ以外の失敗はすべてErrInvalidSignatureになる。
func (i *Issuer) Verify(value string) (*Claims, error) {
	claims := &Claims{}
	_, err := i.parser.ParseWithClaims(value, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidSignature
	}

	if claims.Email == "" || claims.ID == "" {
		return nil, ErrInvalidSignature
	}
	return claims, nil
}
