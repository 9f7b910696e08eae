package domain

import (
	"time"
)

type Role string

const (
	RoleClient   Role = "client"
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleEmployee, RoleAdmin:
		return true
	}
	return false
}

type UserStatus string

const (
	UserStatusPending     UserStatus = "pending"
	UserStatusActive      UserStatus = "active"
	UserStatusDeactivated UserStatus = "deactivated"
)

type User struct {
	ID             int64      `json:"id"`
	Email          string     `json:"email"`
	Mobile         string     `json:"mobile"`
	PasswordHash   string     `json:"-"`
	FullName       string     `json:"fullName"`
	Company        string     `json:"company"`
	Role           Role       `json:"role"`
	Status         UserStatus `json:"status"`
	EmailVerified  bool       `json:"emailVerified"`
	MobileVerified bool       `json:"mobileVerified"`
	CreatedAt      time.Time  `json:"createdAt"`
	Version        int32      `json:"-"`
}

func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// Identity 是通过令牌校验后附加在请求上的身份
type Identity struct {
	ID   int64 `json:"id"`
	Role Role  `json:"role"`
}
