// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, token, notification, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeDuplicateEmail     = "DUPLICATE_EMAIL"
	ErrCodeDuplicateUserID    = "DUPLICATE_USER_ID"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeExpiredToken       = "EXPIRED_TOKEN"
	ErrCodeInvalidSignature   = "INVALID_SIGNATURE"
	ErrCodeTokenAlreadyUsed   = "TOKEN_ALREADY_USED"
	ErrCodeDeliveryFailed     = "DELIVERY_FAILED"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// HasCode はerrがcodeを持つAPIErrorかどうかを判定する。
// ラップされたエラーも辿る。
func HasCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// NewValidationError は入力値の検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力内容に誤りがあります: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してから再度送信してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "有効なメールアドレスを入力してください。",
	}
}

// NewDuplicateEmailError は登録済みのメールアドレスで登録しようとした場合のエラーを生成する。
func NewDuplicateEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEmail,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "ログインするか、パスワードをお忘れの場合はリセットしてください。",
	}
}

// NewDuplicateUserIDError は登録済みの外部IDで登録しようとした場合のエラーを生成する。
func NewDuplicateUserIDError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateUserID,
		Message:  "このユーザーIDは既に使用されています。",
		Category: "auth",
		Action:   "ユーザーIDを指定せずに再度登録してください。",
	}
}

// NewInvalidCredentialsError はパスワードが一致しない場合のエラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "パスワードが正しくありません。",
		Category: "auth",
		Action:   "パスワードを確認するか、パスワードをリセットしてください。",
	}
}

// NewExpiredTokenError はリセットトークンの有効期限切れエラーを生成する。
func NewExpiredTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeExpiredToken,
		Message:  "パスワードリセットトークンの有効期限が切れています。",
		Category: "token",
		Action:   "パスワードリセットを再度リクエストしてください。",
	}
}

// NewInvalidSignatureError はリセットトークンの署名が不正な場合のエラーを生成する。
func NewInvalidSignatureError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSignature,
		Message:  "パスワードリセットトークンが無効です。",
		Category: "token",
		Action:   "受け取ったトークンをそのまま入力するか、再度リクエストしてください。",
	}
}

// NewTokenAlreadyUsedError は使用済みのリセットトークンが再送された場合のエラーを生成する。
func NewTokenAlreadyUsedError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenAlreadyUsed,
		Message:  "このパスワードリセットトークンは既に使用されています。",
		Category: "token",
		Action:   "パスワードリセットを再度リクエストしてください。",
	}
}

// NewDeliveryFailedError はリセットトークンの送信に失敗した場合のエラーを生成する。
func NewDeliveryFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeDeliveryFailed,
		Message:  "パスワードリセットの通知を送信できませんでした。",
		Category: "notification",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewRateLimitedError はレート制限超過のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterヘッダーの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
