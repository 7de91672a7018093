package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hitoshi/bloghub/internal/authz"
	"github.com/hitoshi/bloghub/internal/middleware"
	"github.com/hitoshi/bloghub/internal/model"
)

// maxRequestBodySize はJSONリクエストボディの上限（1MB）。
const maxRequestBodySize = 1 << 20

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをdstにデコードする。
// 失敗した場合はエラーレスポンスを書き込み、falseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		apiErr := model.NewValidationError("Invalid request body")
		middleware.WriteErrorResponse(w, apiErr.StatusCode(), apiErr)
		return false
	}
	return true
}

// requireIdentity はコンテキストから主体を取得する。
// 認証ミドルウェアを通過していない場合はエラーレスポンスを書き込み、falseを返す。
func requireIdentity(w http.ResponseWriter, r *http.Request) (authz.Identity, bool) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		apiErr := model.NewUnauthorizedError()
		middleware.WriteErrorResponse(w, apiErr.StatusCode(), apiErr)
		return authz.Identity{}, false
	}
	return id, true
}

// handleServiceError はサービス層のエラーをHTTPレスポンスに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, apiErr.StatusCode(), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// parseListOptions はstartIndex、limit、および並び順のクエリパラメータを解釈する。
// 数値として解釈できない値や負の値はデフォルト値とし、limitはMaxListLimitで打ち切る。
// sortKeyは並び順を指定するパラメータ名（ユーザー一覧は"sort"、投稿とコメントは"order"）。
func parseListOptions(r *http.Request, sortKey string) model.ListOptions {
	q := r.URL.Query()
	opts := model.ListOptions{
		StartIndex: parsePositiveInt(q.Get("startIndex"), 0),
		Limit:      parsePositiveInt(q.Get("limit"), model.DefaultListLimit),
		Ascending:  q.Get(sortKey) == "asc",
	}
	if opts.Limit > model.MaxListLimit {
		opts.Limit = model.MaxListLimit
	}
	return opts
}

func parsePositiveInt(raw string, defaultVal int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}

// nonNil は空の一覧をJSONのnullではなく[]として返すためにnilスライスを置き換える。
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
