package handler

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/auth"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/config"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/domain"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/permission"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/session"
	"golang.org/x/time/rate"
)

type UserStore interface {
	GetAllUsers(ctx context.Context) ([]*domain.User, error)
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	UpsertUser(ctx context.Context, user *domain.User) error
}

type ContractStore interface {
	CreateContract(ctx context.Context, c *domain.Contract) error
	GetContract(ctx context.Context, id int64) (*domain.Contract, error)
	UpdateContract(ctx context.Context, c *domain.Contract) error
	DeleteContract(ctx context.Context, id int64) error
	GetComments(ctx context.Context, contractID int64) ([]*domain.Comment, error)
	CreateComment(ctx context.Context, c *domain.Comment) error
}

type Handler struct {
	validate    *validator.Validate
	config      *config.Config
	translator  ut.Translator
	auth        *auth.Service
	permissions *permission.Engine
	guard       *session.Guard
	users       UserStore
	contracts   ContractStore
	metrics     *metrics.Metrics
	otpLimiter  *ipLimiter

	Mux *chi.Mux
}

func NewHandler(
	cfg *config.Config,
	authService *auth.Service,
	permissions *permission.Engine,
	guard *session.Guard,
	users UserStore,
	contracts ContractStore,
	m *metrics.Metrics,
) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:    validate,
		config:      cfg,
		translator:  trans,
		auth:        authService,
		permissions: permissions,
		guard:       guard,
		users:       users,
		contracts:   contracts,
		metrics:     m,
		otpLimiter:  newIPLimiter(rate.Limit(cfg.RateLimit.Rate), cfg.RateLimit.Burst, 10*time.Minute),

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(middleware.RequestID)
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	h.Mux.Get("/metrics", h.metrics.Handler().ServeHTTP)

	// 认证相关
	h.Mux.Route("/auth", func(r chi.Router) {
		// 会发送验证码的接口需要限流，登录不限流
		r.With(h.rateLimit).Post("/register", h.Register)
		r.Post("/register/verify", h.VerifyRegistration)
		r.With(h.rateLimit).Post("/register/resend", h.ResendRegistrationOTP)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.With(h.rateLimit).Post("/forgot-password", h.ForgotPassword)
		r.Post("/reset-password", h.ResetPassword)
	})

	// 以下 API 必须要在登录后才允许调用
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.guard.Middleware(h.unauthenticated))

		r.Route("/me", func(r chi.Router) {
			r.Get("/", h.GetMyInfo)
			r.Patch("/password", h.UpdateMyPassword)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(h.RequiredRole([]domain.Role{domain.RoleAdmin}))
			r.Get("/", h.GetAllUserInfo)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.userInfo)
				r.Get("/", h.GetUserInfo)
				r.With(h.preventOperateInitialAdmin).Patch("/role", h.UpdateUserRole)
				r.With(h.preventOperateInitialAdmin).Patch("/active", h.UpdateUserActive)
			})
		})

		// 授权记录由权限引擎自己检查管理员身份
		r.Route("/permissions/{employeeID}", func(r chi.Router) {
			r.Get("/", h.ListPermissions)
			r.Get("/{contractID}", h.GetPermission)
			r.Put("/{contractID}", h.SetPermission)
		})

		r.Route("/contracts", func(r chi.Router) {
			r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Post("/", h.CreateContract)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.contract)
				r.With(h.authorize(domain.ActionRead)).Get("/", h.GetContract)
				r.With(h.authorize(domain.ActionEdit)).Patch("/", h.UpdateContract)
				r.With(h.authorize(domain.ActionStatusUpdate)).Patch("/status", h.UpdateContractStatus)
				r.With(h.authorize(domain.ActionDelete)).Delete("/", h.DeleteContract)
				r.With(h.authorize(domain.ActionReview)).Post("/review", h.ReviewContract)
				r.With(h.authorize(domain.ActionPrepare)).Post("/prepare", h.PrepareContract)
				r.Route("/comments", func(r chi.Router) {
					r.With(h.authorize(domain.ActionRead)).Get("/", h.GetComments)
					r.With(h.authorize(domain.ActionComment)).Post("/", h.CreateComment)
				})
			})
		})
	})
}
