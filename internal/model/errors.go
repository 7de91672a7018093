// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"net/http"
)

// ErrorKind はエラーの分類を表す。
type ErrorKind string

// 定義済みエラー分類
const (
	ErrKindValidation         ErrorKind = "VALIDATION"
	ErrKindDuplicateAccount   ErrorKind = "DUPLICATE_ACCOUNT"
	ErrKindInvalidCredentials ErrorKind = "INVALID_CREDENTIALS"
	ErrKindUnauthorized       ErrorKind = "UNAUTHORIZED"
	ErrKindForbidden          ErrorKind = "FORBIDDEN"
	ErrKindNotFound           ErrorKind = "NOT_FOUND"
)

// APIError はクライアントへ返却するエラーを表す。
// Statusにはレスポンスに付与するHTTPステータスコードを保持する。
// このシステムの規約では分類済みエラーはすべて400で返す。
type APIError struct {
	Kind    ErrorKind // エラー分類
	Status  int       // HTTPステータスコード。0の場合は500として扱う
	Message string    // クライアント向けメッセージ
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// StatusCode はレスポンスに使用するHTTPステータスコードを返す。
func (e *APIError) StatusCode() int {
	if e.Status == 0 {
		return http.StatusInternalServerError
	}
	return e.Status
}

func newAPIError(kind ErrorKind, message string) *APIError {
	return &APIError{Kind: kind, Status: http.StatusBadRequest, Message: message}
}

// NewValidationError は入力値の検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return newAPIError(ErrKindValidation, message)
}

// NewDuplicateAccountError は登録済みアカウントとの重複エラーを生成する。
func NewDuplicateAccountError() *APIError {
	return newAPIError(ErrKindDuplicateAccount, "User already exists.")
}

// NewInvalidCredentialsError は認証情報の不一致エラーを生成する。
// メールアドレス未登録とパスワード不一致で同一のエラーを返すこと。
func NewInvalidCredentialsError() *APIError {
	return newAPIError(ErrKindInvalidCredentials, "Email or Password is incorrect")
}

// NewUnauthorizedError はセッショントークン不正・欠落のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return newAPIError(ErrKindUnauthorized, "Unauthorised")
}

// NewForbiddenError は認証済みだが権限のない操作のエラーを生成する。
func NewForbiddenError(message string) *APIError {
	return newAPIError(ErrKindForbidden, message)
}

// NewNotFoundError はリソース未検出エラーを生成する。
func NewNotFoundError(message string) *APIError {
	return newAPIError(ErrKindNotFound, message)
}
