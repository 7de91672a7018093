// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/bloghub/internal/auth"
	"github.com/hitoshi/bloghub/internal/authz"
	"github.com/hitoshi/bloghub/internal/metrics"
	"github.com/hitoshi/bloghub/internal/model"
)

// SessionCookieName はセッショントークンを保持するCookie名。
const SessionCookieName = "bloghubtoken"

// トークン拒否理由のメトリクスラベル
const (
	RejectionMissing = "missing"
	RejectionInvalid = "invalid"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はリクエストコンテキストに主体を格納するためのキー。
var identityContextKey = contextKey("identity")

// TokenVerifier はセッショントークンの検証インターフェース。
type TokenVerifier interface {
	Verify(token string) (auth.Claims, error)
}

// NewAuthMiddleware はCookieのセッショントークンを検証し、
// 主体をリクエストコンテキストに注入するミドルウェアを返す。
// トークンが欠落・不正・期限切れの場合は400で応答し、後続のハンドラーを呼ばない。
// collectorはnilを許容する。
func NewAuthMiddleware(verifier TokenVerifier, collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	reject := func(w http.ResponseWriter, reason string) {
		if collector != nil {
			collector.RecordTokenRejection(reason)
		}
		apiErr := model.NewUnauthorizedError()
		WriteErrorResponse(w, apiErr.StatusCode(), apiErr)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Cookieからトークンを取得
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				reject(w, RejectionMissing)
				return
			}

			// 2. 署名と有効期限を検証
			claims, err := verifier.Verify(cookie.Value)
			if err != nil {
				if !errors.Is(err, auth.ErrInvalidToken) {
					slog.Error("failed to verify session token",
						slog.String("error", err.Error()),
					)
				}
				reject(w, RejectionInvalid)
				return
			}

			// 3. 主体をコンテキストに注入
			id := authz.Identity{
				AccountID: claims.AccountID,
				IsAdmin:   claims.IsAdmin,
			}
			recordIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
		})
	}
}

// IdentityFromContext はリクエストコンテキストから主体を取得する。
// 認証ミドルウェアを通過していないリクエストではfalseを返す。
func IdentityFromContext(ctx context.Context) (authz.Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(authz.Identity)
	if !ok || !id.Authenticated() {
		return authz.Identity{}, false
	}
	return id, true
}

// ContextWithIdentity はコンテキストに主体を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithIdentity(ctx context.Context, id authz.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}
