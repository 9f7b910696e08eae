package handler

import (
	"net/http"

	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/domain"
)

func (h *Handler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := parseIDParam(r, "employeeID")
	if !ok {
		h.errorResponse(w, r, http.StatusBadRequest, "员工ID无效")
		return
	}

	perms, err := h.permissions.ListPermissions(r.Context(), identity(r), employeeID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取授权列表成功", perms)
}

func (h *Handler) GetPermission(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := parseIDParam(r, "employeeID")
	if !ok {
		h.errorResponse(w, r, http.StatusBadRequest, "员工ID无效")
		return
	}
	contractID, ok := parseIDParam(r, "contractID")
	if !ok {
		h.errorResponse(w, r, http.StatusBadRequest, "合同ID无效")
		return
	}

	p, err := h.permissions.GetPermission(r.Context(), identity(r), employeeID, contractID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取授权成功", p)
}

// SetPermission 整体覆盖员工在某份合同上的授权，未提供的能力位视为 false
func (h *Handler) SetPermission(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := parseIDParam(r, "employeeID")
	if !ok {
		h.errorResponse(w, r, http.StatusBadRequest, "员工ID无效")
		return
	}
	contractID, ok := parseIDParam(r, "contractID")
	if !ok {
		h.errorResponse(w, r, http.StatusBadRequest, "合同ID无效")
		return
	}

	var req struct {
		CanRead    bool `json:"canRead"`
		CanWrite   bool `json:"canWrite"`
		CanEdit    bool `json:"canEdit"`
		CanDelete  bool `json:"canDelete"`
		IsReviewer bool `json:"isReviewer"`
		IsPreparer bool `json:"isPreparer"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	id := identity(r)
	if id.Role != domain.RoleAdmin {
		h.handleError(w, r, domain.ErrForbidden)
		return
	}

	if _, err := h.contracts.GetContract(r.Context(), contractID); err != nil {
		h.handleError(w, r, err)
		return
	}

	p := &domain.ResourcePermission{
		EmployeeID: employeeID,
		ContractID: contractID,
		CanRead:    req.CanRead,
		CanWrite:   req.CanWrite,
		CanEdit:    req.CanEdit,
		CanDelete:  req.CanDelete,
		IsReviewer: req.IsReviewer,
		IsPreparer: req.IsPreparer,
	}

	if err := h.permissions.SetPermission(r.Context(), id, p); err != nil {
		h.handleError(w, r, err)
		return
	}

	h.successResponse(w, r, "设置授权成功", p)
}
