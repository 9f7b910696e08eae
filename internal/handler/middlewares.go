package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/credential"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/domain"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/session"
)

type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
}

func (rw *ResponseWriter) WriteHeader(statusCode int) {
	rw.StatusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (h *Handler) logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &ResponseWriter{ResponseWriter: w, StatusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		duration := time.Since(start)

		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		h.metrics.ObserveRequest(r.Method, route, rw.StatusCode, duration)

		slog.Info("已处理请求",
			"request_id", middleware.GetReqID(r.Context()),
			"status", rw.StatusCode,
			"ip", r.RemoteAddr,
			"method", r.Method,
			"path", r.URL.Path,
			"duration", duration,
		)
	})
}

func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				h.internalServerError(w, r, fmt.Errorf("panic: %v", err))
				stackTrace := string(debug.Stack())
				fmt.Print(stackTrace) // 这里如果用 slog 的话会很乱
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) unauthenticated(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusOf(err)
	h.errorResponse(w, r, status, msg)
}

func identity(r *http.Request) domain.Identity {
	id, _ := session.IdentityFrom(r.Context())
	return id
}

func (h *Handler) RequiredRole(roles []domain.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !slices.Contains(roles, identity(r).Role) {
				h.errorResponse(w, r, http.StatusForbidden, "权限不足")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *Handler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.otpLimiter.Allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			h.errorResponse(w, r, http.StatusTooManyRequests, "请求过于频繁，请稍后再试")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func parseIDParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) userInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := parseIDParam(r, "id")
		if !ok {
			h.errorResponse(w, r, http.StatusBadRequest, "用户ID无效")
			return
		}

		user, err := h.users.GetUserByID(r.Context(), userID)
		if err != nil {
			h.handleError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), UserInfoCtx, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) preventOperateInitialAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := r.Context().Value(UserInfoCtx).(*domain.User)
		if user.Email == credential.NormalizeEmail(h.config.InitialAdmin.Email) {
			h.errorResponse(w, r, http.StatusForbidden, "禁止操作初始管理员")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) contract(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contractID, ok := parseIDParam(r, "id")
		if !ok {
			h.errorResponse(w, r, http.StatusBadRequest, "合同ID无效")
			return
		}

		c, err := h.contracts.GetContract(r.Context(), contractID)
		if err != nil {
			h.handleError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), ContractCtx, c)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authorize 对当前合同执行 action 前的鉴权，每次判定都会记录结果
func (h *Handler) authorize(action domain.Action) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := identity(r)
			c := r.Context().Value(ContractCtx).(*domain.Contract)

			decision, err := h.permissions.Authorize(r.Context(), id, action, c.Resource())
			h.metrics.AuthzDecision(string(action), string(decision))
			if err != nil {
				h.internalServerError(w, r, err)
				return
			}
			if !decision.Allowed() {
				slog.Info("拒绝访问", "user_id", id.ID, "role", id.Role, "action", action, "contract_id", c.ID)
				h.errorResponse(w, r, http.StatusForbidden, "权限不足")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
