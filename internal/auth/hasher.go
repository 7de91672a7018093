package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordCost はbcryptのワークファクター。
const PasswordCost = 10

// PasswordHasher はパスワードの一方向ハッシュ化と照合のインターフェース。
type PasswordHasher interface {
	// Hash は平文パスワードをソルト付きでハッシュ化する。
	Hash(plaintext string) (string, error)
	// Verify は平文パスワードがハッシュと一致するかを返す。不一致でもエラーにはしない。
	Verify(plaintext, hashed string) bool
}

// BcryptHasher はbcryptによるPasswordHasherの実装。
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher はワークファクター10のBcryptHasherを生成する。
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{cost: PasswordCost}
}

// Hash は平文パスワードをbcryptでハッシュ化する。
// 72バイトを超える入力などハッシュ化できない場合はエラーを返し、弱いハッシュで代替しない。
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify はハッシュに埋め込まれたソルトとコストで照合する。
// 不一致・不正なハッシュ形式のいずれもfalseを返す。
func (h *BcryptHasher) Verify(plaintext, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plaintext)) == nil
}

// compile-time interface check
var _ PasswordHasher = (*BcryptHasher)(nil)
