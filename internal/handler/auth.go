package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/auth"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/domain"
)

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required,email"`
		Mobile   string `json:"mobile" validate:"required,numeric,min=6,max=20"`
		Password string `json:"password" validate:"required,min=8,max=72"`
		FullName string `json:"fullName" validate:"required,max=64"`
		Company  string `json:"company" validate:"omitempty,max=128"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	result, err := h.auth.StartRegistration(r.Context(), auth.RegistrationRequest{
		Email:    req.Email,
		Mobile:   req.Mobile,
		Password: req.Password,
		FullName: req.FullName,
		Company:  req.Company,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, Response{
		Success: true,
		Message: "验证码已发送到邮箱和手机",
		Data:    result,
	})
}

func (h *Handler) VerifyRegistration(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID     int64  `json:"userId" validate:"required,gt=0"`
		EmailCode  string `json:"emailCode" validate:"omitempty,len=6,numeric"`
		MobileCode string `json:"mobileCode" validate:"omitempty,len=6,numeric"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if req.EmailCode == "" && req.MobileCode == "" {
		h.errorResponse(w, r, http.StatusBadRequest, "请至少提供一个验证码")
		return
	}

	result, err := h.auth.VerifyRegistration(r.Context(), req.UserID, req.EmailCode, req.MobileCode)
	if err != nil {
		status, msg := statusOf(err)
		if result == nil || status == http.StatusInternalServerError {
			h.handleError(w, r, err)
			return
		}
		// 部分通道失败时仍然返回当前的注册状态
		h.writeJSON(w, r, status, Response{
			Success: false,
			Message: msg,
			Data:    result,
		})
		return
	}

	msg := "验证成功"
	if result.State == domain.RegistrationActive {
		msg = "账户已激活"
	}
	h.successResponse(w, r, msg, result)
}

func (h *Handler) ResendRegistrationOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID  int64  `json:"userId" validate:"required,gt=0"`
		Channel string `json:"channel" validate:"required,oneof=email mobile"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.auth.ResendRegistrationOTP(r.Context(), req.UserID, domain.Channel(req.Channel)); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			err = domain.ErrOTPNotFound
		}
		h.handleError(w, r, err)
		return
	}

	h.successResponse(w, r, "验证码已重新发送", nil)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	// 令牌在响应体中返回，同时通过 http-only 的 cookie 提供给浏览器
	cookie := &http.Cookie{
		Name:     h.config.JWT.CookieName,
		Value:    result.Token,
		Expires:  result.ExpiresAt,
		Path:     "/",
		HttpOnly: true,
		Secure:   false,
		SameSite: http.SameSiteLaxMode,
	}

	if h.config.Environment == "production" {
		cookie.Secure = true
		cookie.SameSite = http.SameSiteStrictMode
	}

	http.SetCookie(w, cookie)

	h.successResponse(w, r, "登录成功", result)
}

// Logout 只清除 cookie，已签发的令牌在过期前仍然有效
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.config.JWT.CookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		Path:     "/",
		HttpOnly: true,
	})

	h.successResponse(w, r, "登出成功", nil)
}

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	// 邮箱是否存在都返回同样的响应，以防止接口被用来探测账户
	h.successResponse(w, r, "如果该邮箱已注册，重置密码所需验证码已通过邮件发送", nil)
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required,email"`
		OTP      string `json:"otp" validate:"required,len=6,numeric"`
		Password string `json:"password" validate:"required,min=8,max=72"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.auth.ResetPassword(r.Context(), req.Email, req.OTP, req.Password); err != nil {
		if status, _ := statusOf(err); status != http.StatusInternalServerError {
			slog.Info("重置密码失败", "reason", err.Error())
		}
		h.handleError(w, r, err)
		return
	}

	h.successResponse(w, r, "重置密码成功", nil)
}
