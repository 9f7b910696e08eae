package token

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/domain"
)

const DefaultTTL = 15 * time.Minute

// AuthClaims 是写入令牌的声明，sub 为用户 ID
type AuthClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Claims struct {
	SubjectID int64
	Role      domain.Role
	ExpiresAt time.Time
}

// Issuer 签发和校验无状态的 HS256 令牌，不存在服务端吊销
type Issuer struct {
	secret []byte
	now    func() time.Time
}

func NewIssuer(secret string) *Issuer {
	return &Issuer{
		secret: []byte(secret),
		now:    time.Now,
	}
}

func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

func (i *Issuer) Mint(subjectID int64, role domain.Role, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := i.now()
	expiration := now.Add(ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AuthClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiration),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Subject:   strconv.FormatInt(subjectID, 10),
			ID:        uuid.NewString(),
		},
	})

	ss, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return ss, expiration, nil
}

// Verify 校验令牌。结构合法但已过期返回 ErrTokenExpired，其余失败都返回 ErrInvalidToken
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &AuthClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrInvalidToken
	}

	subjectID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}
	role := domain.Role(claims.Role)
	if !role.Valid() {
		return nil, domain.ErrInvalidToken
	}

	return &Claims{
		SubjectID: subjectID,
		Role:      role,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
