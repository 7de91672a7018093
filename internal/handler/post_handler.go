package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/bloghub/internal/authz"
	"github.com/hitoshi/bloghub/internal/model"
	"github.com/hitoshi/bloghub/internal/post"
)

// PostServiceInterface は投稿ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	Create(ctx context.Context, caller authz.Identity, in post.Input) (*model.Post, error)
	List(ctx context.Context, filter model.PostFilter, opts model.ListOptions) (*post.ListResult, error)
	Update(ctx context.Context, caller authz.Identity, postID string, in post.Input) (*model.Post, error)
	Delete(ctx context.Context, caller authz.Identity, postID string) error
	Feed(ctx context.Context, baseURL string, limit int) ([]byte, error)
}

// PostHandler は投稿のHTTPハンドラー。
type PostHandler struct {
	service PostServiceInterface
	feedURL string // RSSの記事リンクの基準URL
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PostServiceInterface, feedURL string) *PostHandler {
	return &PostHandler{
		service: service,
		feedURL: feedURL,
	}
}

type postRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Image    string `json:"image"`
	Category string `json:"category"`
}

func (req postRequest) toInput() post.Input {
	return post.Input{
		Title:    req.Title,
		Content:  req.Content,
		Image:    req.Image,
		Category: req.Category,
	}
}

type createPostResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Post    *model.Post `json:"post"`
}

type updatePostResponse struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message"`
	UpdatePost *model.Post `json:"updatePost"`
}

type listPostsResponse struct {
	Success               bool          `json:"success"`
	Posts                 []*model.Post `json:"posts"`
	TotalPosts            int           `json:"totalPosts"`
	LastMonthCreatedPosts int           `json:"lastMonthCreatedPosts"`
}

// CreatePost は管理者が投稿を作成する。
// POST /api/post/create-post
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req postRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.service.Create(r.Context(), caller, req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, createPostResponse{Success: true, Message: "Post created Successfully", Post: created})
}

// GetPosts は条件に一致する投稿一覧を返す。
// GET /api/post/get-posts?userId=&category=&slug=&postId=&searchTerm=&order=asc&startIndex=0&limit=9
func (h *PostHandler) GetPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.PostFilter{
		UserID:     q.Get("userId"),
		Category:   q.Get("category"),
		Slug:       q.Get("slug"),
		PostID:     q.Get("postId"),
		SearchTerm: q.Get("searchTerm"),
	}

	result, err := h.service.List(r.Context(), filter, parseListOptions(r, "order"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listPostsResponse{
		Success:               true,
		Posts:                 nonNil(result.Posts),
		TotalPosts:            result.Total,
		LastMonthCreatedPosts: result.LastMonth,
	})
}

// DeletePost は投稿を削除する。パスのuserIdは互換性のために受け付けるが、
// 認可は保存済みの投稿の所有者に対して行う。
// DELETE /api/post/delete-posts/{postId}/{userId}
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), caller, chi.URLParam(r, "postId")); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Post Deleted Successfully"})
}

// UpdatePost は投稿を更新する。
// PUT /api/post/update-posts/{postId}/{userId}
func (h *PostHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req postRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.service.Update(r.Context(), caller, chi.URLParam(r, "postId"), req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updatePostResponse{Success: true, Message: "Post Updated Successfully", UpdatePost: updated})
}

// Feed は最新の投稿のRSS 2.0フィードを返す。
// GET /api/post/feed?limit=20
func (h *PostHandler) Feed(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	body, err := h.service.Feed(r.Context(), h.feedURL, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
