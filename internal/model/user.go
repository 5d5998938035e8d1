// Package model はドメインモデルを定義する。
package model

import "time"

// DefaultProfilePictureURL はプロフィール画像が未指定の場合の既定値。
const DefaultProfilePictureURL = "i1.jpg"

// DefaultTeamID はチームIDが未指定の場合の既定値。
const DefaultTeamID = 1

// User はサービス利用ユーザーを表す。
// PasswordHashはパスワードハッシャー以外から参照してはならない。
// APIレスポンスやクライアント側の永続化には含めない。
type User struct {
	UserID            int64  // ストアが採番する連番
	ID                string // 外部IdentityのID（cognitoId）。作成後は不変
	Email             string
	Username          string
	PasswordHash      string
	ProfilePictureURL string
	TeamID            *int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ConsumedToken は使用済みのパスワードリセットトークンを表す。
// TokenHashはトークンID（jti）のSHA-256ハッシュで、トークン本体は保存しない。
type ConsumedToken struct {
	TokenHash  string
	ExpiresAt  time.Time
	ConsumedAt time.Time
}
