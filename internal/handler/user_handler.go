package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/bloghub/internal/account"
	"github.com/hitoshi/bloghub/internal/authz"
	"github.com/hitoshi/bloghub/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	UpdateProfile(ctx context.Context, caller authz.Identity, targetID string, in account.ProfileInput) (*model.Account, error)
	// DeleteProfile は本人のみ、DeleteAccountは本人または管理者が実行できる。
	DeleteProfile(ctx context.Context, caller authz.Identity, targetID string) error
	DeleteAccount(ctx context.Context, caller authz.Identity, targetID string) error
	ListAccounts(ctx context.Context, caller authz.Identity, opts model.ListOptions) (*account.ListResult, error)
	GetAccount(ctx context.Context, targetID string) (*model.Account, error)
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

type updateUserRequest struct {
	Username       string `json:"username"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	ProfilePicture string `json:"profilePicture"`
}

type updateUserResponse struct {
	Message string         `json:"message"`
	Success bool           `json:"success"`
	User    *model.Account `json:"user"`
}

type listUsersResponse struct {
	Success        bool             `json:"success"`
	Users          []*model.Account `json:"users"`
	TotalUsers     int              `json:"totalUsers"`
	LastMonthUsers int              `json:"lastMonthUsers"`
}

type getUserResponse struct {
	Success bool           `json:"success"`
	User    *model.Account `json:"user"`
}

// UpdateUser は本人のプロフィールを更新する。
// PUT /api/user/update/{userId}
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req updateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.service.UpdateProfile(r.Context(), caller, chi.URLParam(r, "userId"), account.ProfileInput{
		Username:       req.Username,
		Email:          req.Email,
		Password:       req.Password,
		ProfilePicture: req.ProfilePicture,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updateUserResponse{Message: "User Profile Updated", Success: true, User: updated})
}

// DeleteProfile は本人のアカウントを削除する。
// DELETE /api/user/delete/{userId}
func (h *UserHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteProfile(r.Context(), caller, chi.URLParam(r, "userId")); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "User Profile Deleted"})
}

// DeleteUser は本人または管理者がアカウントを削除する。
// DELETE /api/user/delete/user/{userId}
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteAccount(r.Context(), caller, chi.URLParam(r, "userId")); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "User Deleted"})
}

// ListUsers は管理者向けにアカウント一覧を返す。
// GET /api/user/get/all/users?startIndex=0&limit=9&sort=asc
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	result, err := h.service.ListAccounts(r.Context(), caller, parseListOptions(r, "sort"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listUsersResponse{
		Success:        true,
		Users:          nonNil(result.Accounts),
		TotalUsers:     result.Total,
		LastMonthUsers: result.LastMonth,
	})
}

// GetUser は指定IDのアカウントを返す。
// GET /api/user/get/user/{userId}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	found, err := h.service.GetAccount(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, getUserResponse{Success: true, User: found})
}
