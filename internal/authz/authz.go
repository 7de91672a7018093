// Package authz はリクエスト主体に対する認可ポリシーを定義する。
//
// 各ポリシーは副作用のない述語で、ハンドラーやサービスは
// 操作ごとにどのポリシーを適用するかを名前で選ぶ。
package authz

import "github.com/hitoshi/bloghub/internal/model"

// Identity は検証済みセッショントークンから得たリクエスト主体。
// リクエストスコープでのみ保持する。
type Identity struct {
	AccountID string
	IsAdmin   bool
}

// Authenticated は主体が確定しているかを返す。
func (id Identity) Authenticated() bool {
	return id.AccountID != ""
}

// SelfOnly は本人のみを許可する。管理者であっても他人は不可。
func SelfOnly(id Identity, targetID string) bool {
	return id.Authenticated() && id.AccountID == targetID
}

// SelfOrAdmin は本人または管理者を許可する。
func SelfOrAdmin(id Identity, targetID string) bool {
	return id.Authenticated() && (id.AccountID == targetID || id.IsAdmin)
}

// OwnerOrAdmin はリソースの所有者または管理者を許可する。
func OwnerOrAdmin(id Identity, ownerID string) bool {
	return SelfOrAdmin(id, ownerID)
}

// AdminOnly は管理者のみを許可する。
func AdminOnly(id Identity) bool {
	return id.Authenticated() && id.IsAdmin
}

// Require は判定がfalseの場合にForbiddenエラーを返す。
func Require(allowed bool, message string) error {
	if allowed {
		return nil
	}
	return model.NewForbiddenError(message)
}
