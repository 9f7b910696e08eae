package permission

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/domain"
)

type Decision string

const (
	DecisionAdminBypass Decision = "admin-bypass"
	DecisionOwnerMatch  Decision = "owner-match"
	DecisionGrantMatch  Decision = "grant-match"
	DecisionDeny        Decision = "deny"
)

func (d Decision) Allowed() bool {
	return d != DecisionDeny
}

var (
	clientBaseline   = []domain.Action{domain.ActionRead, domain.ActionComment}
	employeeBaseline = []domain.Action{domain.ActionRead, domain.ActionComment, domain.ActionStatusUpdate}
)

type Repository interface {
	GetPermission(ctx context.Context, employeeID, contractID int64) (*domain.ResourcePermission, error)
	SetPermission(ctx context.Context, p *domain.ResourcePermission) error
	ListPermissions(ctx context.Context, employeeID int64) ([]*domain.ResourcePermission, error)
}

type UserLookup interface {
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
}

// Engine 将全局角色和针对单个合同的授权记录组合成一次鉴权决定，授权记录只会追加权限
type Engine struct {
	repo  Repository
	users UserLookup
}

func NewEngine(repo Repository, users UserLookup) *Engine {
	return &Engine{
		repo:  repo,
		users: users,
	}
}

// Authorize 按 管理员 → 所有者/负责人 → 授权记录 的顺序判断，任何一条满足即允许
func (e *Engine) Authorize(ctx context.Context, id domain.Identity, action domain.Action, res domain.Resource) (Decision, error) {
	switch id.Role {
	case domain.RoleAdmin:
		return DecisionAdminBypass, nil
	case domain.RoleClient:
		if res.ClientID == id.ID && slices.Contains(clientBaseline, action) {
			return DecisionOwnerMatch, nil
		}
	case domain.RoleEmployee:
		if res.AssignedEmployeeID != nil && *res.AssignedEmployeeID == id.ID && slices.Contains(employeeBaseline, action) {
			return DecisionOwnerMatch, nil
		}
	default:
		return DecisionDeny, nil
	}

	p, err := e.repo.GetPermission(ctx, id.ID, res.ID)
	if err != nil {
		if errors.Is(err, domain.ErrResourceNotFound) {
			return DecisionDeny, nil
		}
		return DecisionDeny, fmt.Errorf("get permission: %w", err)
	}
	if p.Allows(action) {
		return DecisionGrantMatch, nil
	}

	return DecisionDeny, nil
}

// SetPermission 覆盖 (employeeID, contractID) 上的授权记录，只有管理员可以调用
func (e *Engine) SetPermission(ctx context.Context, actor domain.Identity, p *domain.ResourcePermission) error {
	if actor.Role != domain.RoleAdmin {
		return domain.ErrForbidden
	}

	target, err := e.users.GetUserByID(ctx, p.EmployeeID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrResourceNotFound
		}
		return err
	}
	if target.Role != domain.RoleEmployee {
		return domain.ErrNotEmployee
	}

	p.GrantedBy = actor.ID
	return e.repo.SetPermission(ctx, p)
}

func (e *Engine) GetPermission(ctx context.Context, actor domain.Identity, employeeID, contractID int64) (*domain.ResourcePermission, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, domain.ErrForbidden
	}
	return e.repo.GetPermission(ctx, employeeID, contractID)
}

func (e *Engine) ListPermissions(ctx context.Context, actor domain.Identity, employeeID int64) ([]*domain.ResourcePermission, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, domain.ErrForbidden
	}
	return e.repo.ListPermissions(ctx, employeeID)
}
