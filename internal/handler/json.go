package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/domain"
)

const maxBodyBytes = 1 << 20

func (h *Handler) logInternalServerError(r *http.Request, err error) {
	slog.Error("服务器内部错误", "method", r.Method, "path", r.URL.Path, "error", err)
}

func (h *Handler) readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New("请求体格式错误")
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logInternalServerError(r, err)
	}
}

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func (h *Handler) errorResponse(w http.ResponseWriter, r *http.Request, status int, msg string) {
	h.writeJSON(w, r, status, Response{
		Success: false,
		Message: msg,
		Data:    nil,
	})
}

func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		h.errorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	h.errorResponse(w, r, http.StatusBadRequest, validationErrors[0].Translate(h.translator))
}

func (h *Handler) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	h.logInternalServerError(r, err)
	h.writeJSON(w, r, http.StatusInternalServerError, Response{
		Success: false,
		Message: "服务器内部错误",
		Data:    nil,
	})
}

func (h *Handler) successResponse(w http.ResponseWriter, r *http.Request, msg string, data any) {
	h.writeJSON(w, r, http.StatusOK, Response{
		Success: true,
		Message: msg,
		Data:    data,
	})
}

// statusOf 把错误类别映射为 HTTP 状态码和提示信息，无法识别的错误返回 500
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrTokenExpired):
		return http.StatusUnauthorized, "登录已过期"
	case errors.Is(err, domain.ErrUnauthenticated), errors.Is(err, domain.ErrInvalidToken):
		return http.StatusUnauthorized, "用户未登录"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "邮箱不存在或密码错误"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "权限不足"
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "用户不存在"
	case errors.Is(err, domain.ErrResourceNotFound):
		return http.StatusNotFound, "资源不存在"
	case errors.Is(err, domain.ErrDuplicateEmail):
		return http.StatusConflict, "邮箱已被注册"
	case errors.Is(err, domain.ErrVersionConflict):
		return http.StatusConflict, "数据已被修改，请刷新后重试"
	case errors.Is(err, domain.ErrNotPending):
		return http.StatusConflict, "账户不处于待验证状态"
	case errors.Is(err, domain.ErrNotEmployee):
		return http.StatusBadRequest, "只能为员工设置授权"
	case errors.Is(err, domain.ErrOTPNotFound):
		return http.StatusBadRequest, "验证码不存在"
	case errors.Is(err, domain.ErrOTPExpired):
		return http.StatusBadRequest, "验证码已过期"
	case errors.Is(err, domain.ErrOTPAlreadyConsumed):
		return http.StatusBadRequest, "验证码已被使用"
	case errors.Is(err, domain.ErrOTPMismatch):
		return http.StatusBadRequest, "验证码错误"
	case errors.Is(err, domain.ErrOTPLocked):
		return http.StatusTooManyRequests, "验证码错误次数过多，请重新获取"
	}
	return http.StatusInternalServerError, "服务器内部错误"
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusOf(err)
	if status == http.StatusInternalServerError {
		h.internalServerError(w, r, err)
		return
	}
	h.errorResponse(w, r, status, msg)
}
