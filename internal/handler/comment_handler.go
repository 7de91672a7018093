package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/bloghub/internal/authz"
	"github.com/hitoshi/bloghub/internal/comment"
	"github.com/hitoshi/bloghub/internal/model"
)

// CommentServiceInterface はコメントハンドラーが必要とするサービスインターフェース。
type CommentServiceInterface interface {
	Create(ctx context.Context, caller authz.Identity, in comment.CreateInput) (*model.Comment, error)
	ListByPost(ctx context.Context, postID string) ([]*model.Comment, error)
	ToggleLike(ctx context.Context, caller authz.Identity, commentID string) (*model.Comment, error)
	Edit(ctx context.Context, caller authz.Identity, commentID, content string) (*model.Comment, error)
	Delete(ctx context.Context, caller authz.Identity, commentID string) error
	ListAll(ctx context.Context, caller authz.Identity, opts model.ListOptions) (*comment.ListResult, error)
}

// CommentHandler はコメントのHTTPハンドラー。
type CommentHandler struct {
	service CommentServiceInterface
}

// NewCommentHandler はCommentHandlerを生成する。
func NewCommentHandler(service CommentServiceInterface) *CommentHandler {
	return &CommentHandler{
		service: service,
	}
}

type createCommentRequest struct {
	Content string `json:"content"`
	PostID  string `json:"postId"`
	UserID  string `json:"userId"`
}

type editCommentRequest struct {
	Content string `json:"content"`
}

type commentResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Comment *model.Comment `json:"comment"`
}

type editCommentResponse struct {
	Success       bool           `json:"success"`
	Message       string         `json:"message"`
	EditedComment *model.Comment `json:"editedComment"`
}

type postCommentsResponse struct {
	Success  bool             `json:"success"`
	Comments []*model.Comment `json:"comments"`
}

type listCommentsResponse struct {
	Success                  bool             `json:"success"`
	Comments                 []*model.Comment `json:"comments"`
	TotalComments            int              `json:"totalComments"`
	LastMonthCreatedComments int              `json:"lastMonthCreatedComments"`
}

// CreateComment はコメントを作成する。
// POST /api/comment/create
func (h *CommentHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req createCommentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.service.Create(r.Context(), caller, comment.CreateInput{
		Content: req.Content,
		PostID:  req.PostID,
		UserID:  req.UserID,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, commentResponse{Success: true, Message: "Comment Created", Comment: created})
}

// GetPostComments は投稿のコメントを新しい順に返す。認証不要。
// GET /api/comment/get/post/comments/{postId}
func (h *CommentHandler) GetPostComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.service.ListByPost(r.Context(), chi.URLParam(r, "postId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, postCommentsResponse{Success: true, Comments: nonNil(comments)})
}

// LikeComment は呼び出し元のいいねを反転する。
// GET /api/comment/like/comment/{commentId}
func (h *CommentHandler) LikeComment(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	liked, err := h.service.ToggleLike(r.Context(), caller, chi.URLParam(r, "commentId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, commentResponse{Success: true, Message: "Comment liked", Comment: liked})
}

// EditComment はコメント本文を更新する。
// PUT /api/comment/edit/comment/{commentId}
func (h *CommentHandler) EditComment(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req editCommentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	edited, err := h.service.Edit(r.Context(), caller, chi.URLParam(r, "commentId"), req.Content)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, editCommentResponse{Success: true, Message: "Comment Updated", EditedComment: edited})
}

// DeleteComment はコメントを削除する。
// DELETE /api/comment/delete/comment/{commentId}
func (h *CommentHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), caller, chi.URLParam(r, "commentId")); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Comment Deleted"})
}

// GetComments は管理者向けに全コメントを返す。
// GET /api/comment/get/all/comments?startIndex=0&limit=9&order=asc
func (h *CommentHandler) GetComments(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	result, err := h.service.ListAll(r.Context(), caller, parseListOptions(r, "order"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listCommentsResponse{
		Success:                  true,
		Comments:                 nonNil(result.Comments),
		TotalComments:            result.Total,
		LastMonthCreatedComments: result.LastMonth,
	})
}
