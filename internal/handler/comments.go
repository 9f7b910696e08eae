package handler

import (
	"net/http"
	"slices"

	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/domain"
)

func (h *Handler) GetComments(w http.ResponseWriter, r *http.Request) {
	c := r.Context().Value(ContractCtx).(*domain.Contract)

	comments, err := h.contracts.GetComments(r.Context(), c.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取评论成功", comments)
}

func (h *Handler) CreateComment(w http.ResponseWriter, r *http.Request) {
	c := r.Context().Value(ContractCtx).(*domain.Contract)

	var req struct {
		Body     string `json:"body" validate:"required,max=4096"`
		ParentID *int64 `json:"parentId" validate:"omitempty,gt=0"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 回复的评论必须属于同一份合同
	if req.ParentID != nil {
		comments, err := h.contracts.GetComments(r.Context(), c.ID)
		if err != nil {
			h.internalServerError(w, r, err)
			return
		}
		if !slices.ContainsFunc(comments, func(cm *domain.Comment) bool { return cm.ID == *req.ParentID }) {
			h.errorResponse(w, r, http.StatusBadRequest, "回复的评论不存在")
			return
		}
	}

	comment := &domain.Comment{
		ContractID: c.ID,
		AuthorID:   identity(r).ID,
		ParentID:   req.ParentID,
		Body:       req.Body,
	}
	if err := h.contracts.CreateComment(r.Context(), comment); err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, Response{
		Success: true,
		Message: "评论成功",
		Data:    comment,
	})
}
