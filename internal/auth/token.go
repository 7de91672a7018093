package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken はセッショントークンの署名・形式・有効期限のいずれかが不正であることを示す。
var ErrInvalidToken = errors.New("invalid session token")

// Claims はセッショントークンに埋め込む本人情報。
type Claims struct {
	AccountID string
	IsAdmin   bool
}

// sessionClaims はJWTペイロードの表現。
// キー名は既存フロントエンドとの互換のため _id / isAdmin を使用する。
type sessionClaims struct {
	AccountID string `json:"_id"`
	IsAdmin   bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

// TokenCodec はHS256署名のステートレスなセッショントークンを発行・検証する。
// サーバー側の失効リストは持たず、署名と有効期限のみで有効性を判定する。
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenCodec はTokenCodecを生成する。
func NewTokenCodec(secret string, ttl time.Duration) *TokenCodec {
	return &TokenCodec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock は時刻取得関数を差し替えたTokenCodecを返す。テスト用。
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	return &TokenCodec{secret: c.secret, ttl: c.ttl, now: now}
}

// TTL はトークンの有効期間を返す。
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Issue はclaimsを埋め込んだトークンを発行する。
// 有効期限は発行時刻+TTL（秒精度）。
func (c *TokenCodec) Issue(claims Claims) (string, time.Time, error) {
	issuedAt := c.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(c.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		AccountID: claims.AccountID,
		IsAdmin:   claims.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify はトークンの署名・アルゴリズム・有効期限を検証しclaimsを返す。
// 別のシークレットや別アルゴリズムで署名されたトークンは受け付けない。
func (c *TokenCodec) Verify(tokenString string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &sessionClaims{},
		func(token *jwt.Token) (any, error) {
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sc, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid || sc.AccountID == "" {
		return Claims{}, ErrInvalidToken
	}

	return Claims{AccountID: sc.AccountID, IsAdmin: sc.IsAdmin}, nil
}
