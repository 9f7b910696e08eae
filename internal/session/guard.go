package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/domain"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/token"
)

type contextKey string

const identityCtxKey contextKey = "identity"

type Verifier interface {
	Verify(tokenString string) (*token.Claims, error)
}

// Guard 把请求中携带的令牌转换为身份。Authorization 头优先，cookie 只是同一种令牌的另一个载体
type Guard struct {
	verifier   Verifier
	cookieName string
}

func NewGuard(verifier Verifier, cookieName string) *Guard {
	return &Guard{
		verifier:   verifier,
		cookieName: cookieName,
	}
}

func (g *Guard) extract(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, credential, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return "", false
		}
		credential = strings.TrimSpace(credential)
		return credential, credential != ""
	}

	if g.cookieName == "" {
		return "", false
	}
	cookie, err := r.Cookie(g.cookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// Resolve 返回的错误总是包裹 ErrUnauthenticated，令牌本身的失败原因（无效或过期）也一并包裹
func (g *Guard) Resolve(r *http.Request) (domain.Identity, error) {
	credential, ok := g.extract(r)
	if !ok {
		return domain.Identity{}, domain.ErrUnauthenticated
	}

	claims, err := g.verifier.Verify(credential)
	if err != nil {
		if !errors.Is(err, domain.ErrTokenExpired) && !errors.Is(err, domain.ErrInvalidToken) {
			err = fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
		}
		return domain.Identity{}, fmt.Errorf("%w: %w", domain.ErrUnauthenticated, err)
	}

	return domain.Identity{ID: claims.SubjectID, Role: claims.Role}, nil
}

// Middleware 在身份解析失败时调用 onError，否则把身份放入请求上下文
func (g *Guard) Middleware(onError func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := g.Resolve(r)
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey, id)
}

func IdentityFrom(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(identityCtxKey).(domain.Identity)
	return id, ok
}
