package handler

import (
	"log/slog"
	"net/http"

	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/domain"
)

func (h *Handler) GetAllUserInfo(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.GetAllUsers(r.Context())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取用户列表成功", users)
}

func (h *Handler) GetUserInfo(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(UserInfoCtx).(*domain.User)
	h.successResponse(w, r, "获取用户信息成功", user)
}

func (h *Handler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(UserInfoCtx).(*domain.User)

	var req struct {
		Role string `json:"role" validate:"required,oneof=client employee admin"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	user.Role = domain.Role(req.Role)

	if err := h.users.UpsertUser(r.Context(), user); err != nil {
		h.handleError(w, r, err)
		return
	}

	slog.Info("用户角色已修改", "user_id", user.ID, "role", user.Role, "operator", identity(r).ID)
	h.successResponse(w, r, "修改用户角色成功", user)
}

// UpdateUserActive 停用或重新启用账户，不会删除用户
func (h *Handler) UpdateUserActive(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(UserInfoCtx).(*domain.User)

	var req struct {
		Active *bool `json:"active" validate:"required"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	switch {
	case !*req.Active:
		user.Status = domain.UserStatusDeactivated
	case user.EmailVerified && user.MobileVerified:
		user.Status = domain.UserStatusActive
	default:
		// 未完成验证的账户恢复为待验证
		user.Status = domain.UserStatusPending
	}

	if err := h.users.UpsertUser(r.Context(), user); err != nil {
		h.handleError(w, r, err)
		return
	}

	slog.Info("用户状态已修改", "user_id", user.ID, "status", user.Status, "operator", identity(r).ID)
	h.successResponse(w, r, "修改用户状态成功", user)
}
