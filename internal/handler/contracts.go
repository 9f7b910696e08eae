package handler

import (
	"net/http"

	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/domain"
)

func (h *Handler) CreateContract(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title              string `json:"title" validate:"required,max=256"`
		Body               string `json:"body"`
		ClientID           int64  `json:"clientId" validate:"required,gt=0"`
		AssignedEmployeeID *int64 `json:"assignedEmployeeId" validate:"omitempty,gt=0"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	client, err := h.users.GetUserByID(r.Context(), req.ClientID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if client.Role != domain.RoleClient {
		h.errorResponse(w, r, http.StatusBadRequest, "合同所属用户必须是客户")
		return
	}
	if req.AssignedEmployeeID != nil {
		employee, err := h.users.GetUserByID(r.Context(), *req.AssignedEmployeeID)
		if err != nil {
			h.handleError(w, r, err)
			return
		}
		if employee.Role != domain.RoleEmployee {
			h.handleError(w, r, domain.ErrNotEmployee)
			return
		}
	}

	c := &domain.Contract{
		Title:              req.Title,
		Body:               req.Body,
		Status:             domain.ContractStatusDraft,
		ClientID:           req.ClientID,
		AssignedEmployeeID: req.AssignedEmployeeID,
	}
	if err := h.contracts.CreateContract(r.Context(), c); err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, Response{
		Success: true,
		Message: "创建合同成功",
		Data:    c,
	})
}

func (h *Handler) GetContract(w http.ResponseWriter, r *http.Request) {
	c := r.Context().Value(ContractCtx).(*domain.Contract)
	h.successResponse(w, r, "获取合同成功", c)
}

func (h *Handler) UpdateContract(w http.ResponseWriter, r *http.Request) {
	c := r.Context().Value(ContractCtx).(*domain.Contract)

	var req struct {
		Title   *string `json:"title" validate:"omitempty,min=1,max=256"`
		Body    *string `json:"body"`
		Version *int32  `json:"version"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if req.Version != nil && *req.Version != c.Version {
		h.handleError(w, r, domain.ErrVersionConflict)
		return
	}
	if req.Title != nil {
		c.Title = *req.Title
	}
	if req.Body != nil {
		c.Body = *req.Body
	}

	if err := h.contracts.UpdateContract(r.Context(), c); err != nil {
		h.handleError(w, r, err)
		return
	}

	h.successResponse(w, r, "更新合同成功", c)
}

func (h *Handler) UpdateContractStatus(w http.ResponseWriter, r *http.Request) {
	c := r.Context().Value(ContractCtx).(*domain.Contract)

	var req struct {
		Status string `json:"status" validate:"required,oneof=draft in_review signed cancelled"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	c.Status = domain.ContractStatus(req.Status)

	if err := h.contracts.UpdateContract(r.Context(), c); err != nil {
		h.handleError(w, r, err)
		return
	}

	h.successResponse(w, r, "更新合同状态成功", c)
}

func (h *Handler) DeleteContract(w http.ResponseWriter, r *http.Request) {
	c := r.Context().Value(ContractCtx).(*domain.Contract)

	if err := h.contracts.DeleteContract(r.Context(), c.ID); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "删除合同成功", nil)
}

// ReviewContract 审核合同，审核意见会作为评论保存
func (h *Handler) ReviewContract(w http.ResponseWriter, r *http.Request) {
	c := r.Context().Value(ContractCtx).(*domain.Contract)

	var req struct {
		Approved *bool  `json:"approved" validate:"required"`
		Comment  string `json:"comment" validate:"max=4096"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	c.Status = domain.ContractStatusRejected
	if *req.Approved {
		c.Status = domain.ContractStatusApproved
	}

	if err := h.contracts.UpdateContract(r.Context(), c); err != nil {
		h.handleError(w, r, err)
		return
	}

	if req.Comment != "" {
		if err := h.contracts.CreateComment(r.Context(), &domain.Comment{
			ContractID: c.ID,
			AuthorID:   identity(r).ID,
			Body:       req.Comment,
		}); err != nil {
			h.internalServerError(w, r, err)
			return
		}
	}

	h.successResponse(w, r, "审核合同成功", c)
}

func (h *Handler) PrepareContract(w http.ResponseWriter, r *http.Request) {
	c := r.Context().Value(ContractCtx).(*domain.Contract)

	c.Status = domain.ContractStatusPrepared

	if err := h.contracts.UpdateContract(r.Context(), c); err != nil {
		h.handleError(w, r, err)
		return
	}

	h.successResponse(w, r, "合同已准备完毕", c)
}
