package handler

import (
	"errors"
	"net/http"

	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/domain"
)

func (h *Handler) GetMyInfo(w http.ResponseWriter, r *http.Request) {
	myInfo, err := h.auth.Me(r.Context(), identity(r))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取个人信息成功", myInfo)
}

func (h *Handler) UpdateMyPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OldPassword string `json:"oldPassword" validate:"required"`
		NewPassword string `json:"newPassword" validate:"required,min=8,max=72,nefield=OldPassword"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.auth.ChangePassword(r.Context(), identity(r), req.OldPassword, req.NewPassword); err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			h.errorResponse(w, r, http.StatusBadRequest, "旧密码错误")
			return
		}
		h.handleError(w, r, err)
		return
	}

	h.successResponse(w, r, "更新密码成功", nil)
}
