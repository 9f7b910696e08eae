package permission

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/domain"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/repository/memrepo"
)

var allActions = []domain.Action{
	domain.ActionRead,
	domain.ActionWrite,
	domain.ActionComment,
	domain.ActionEdit,
	domain.ActionStatusUpdate,
	domain.ActionDelete,
	domain.ActionReview,
	domain.ActionPrepare,
}

type fixture struct {
	engine *Engine
	repo   *memrepo.Repository
	admin  domain.Identity
	client domain.Identity
	e1     domain.Identity
	e2     domain.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := memrepo.New()
	ctx := context.Background()

	mk := func(email string, role domain.Role) domain.Identity {
		u := &domain.User{Email: email, Role: role, Status: domain.UserStatusActive}
		require.NoError(t, repo.UpsertUser(ctx, u))
		return domain.Identity{ID: u.ID, Role: role}
	}

	f := &fixture{repo: repo}
	f.admin = mk("admin@x.com", domain.RoleAdmin)
	f.client = mk("client@x.com", domain.RoleClient)
	f.e1 = mk("e1@x.com", domain.RoleEmployee)
	f.e2 = mk("e2@x.com", domain.RoleEmployee)
	f.engine = NewEngine(repo, repo)
	return f
}

func contract5(client, assignee int64) domain.Resource {
	return domain.Resource{ID: 5, ClientID: client, AssignedEmployeeID: &assignee}
}

func TestAdminBypass(t *testing.T) {
	f := newFixture(t)

	for _, a := range allActions {
		d, err := f.engine.Authorize(context.Background(), f.admin, a, domain.Resource{ID: 999, ClientID: 12345})
		require.NoError(t, err)
		assert.Equal(t, DecisionAdminBypass, d, a)
	}
}

func TestClientOwnerBaseline(t *testing.T) {
	f := newFixture(t)
	res := contract5(f.client.ID, f.e1.ID)

	tests := []struct {
		action domain.Action
		want   Decision
	}{
		{domain.ActionRead, DecisionOwnerMatch},
		{domain.ActionComment, DecisionOwnerMatch},
		{domain.ActionEdit, DecisionDeny},
		{domain.ActionDelete, DecisionDeny},
		{domain.ActionStatusUpdate, DecisionDeny},
	}
	for _, tt := range tests {
		d, err := f.engine.Authorize(context.Background(), f.client, tt.action, res)
		require.NoError(t, err)
		assert.Equal(t, tt.want, d, tt.action)
	}

	// 不是自己的合同
	other := contract5(f.client.ID+100, f.e1.ID)
	d, err := f.engine.Authorize(context.Background(), f.client, domain.ActionRead, other)
	require.NoError(t, err)
	assert.Equal(t, DecisionDeny, d)
}

func TestEmployeeAssigneeBaseline(t *testing.T) {
	f := newFixture(t)
	res := contract5(f.client.ID, f.e1.ID)

	for _, a := range []domain.Action{domain.ActionRead, domain.ActionComment, domain.ActionStatusUpdate} {
		d, err := f.engine.Authorize(context.Background(), f.e1, a, res)
		require.NoError(t, err)
		assert.Equal(t, DecisionOwnerMatch, d, a)
	}
	for _, a := range []domain.Action{domain.ActionEdit, domain.ActionDelete, domain.ActionReview} {
		d, err := f.engine.Authorize(context.Background(), f.e1, a, res)
		require.NoError(t, err)
		assert.Equal(t, DecisionDeny, d, a)
	}

	unassigned := domain.Resource{ID: 5, ClientID: f.client.ID}
	d, err := f.engine.Authorize(context.Background(), f.e1, domain.ActionRead, unassigned)
	require.NoError(t, err)
	assert.Equal(t, DecisionDeny, d)
}

func TestGrantEnablesEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := domain.Resource{ID: 5, ClientID: f.client.ID}

	d, err := f.engine.Authorize(ctx, f.e1, domain.ActionEdit, res)
	require.NoError(t, err)
	assert.Equal(t, DecisionDeny, d)

	require.NoError(t, f.engine.SetPermission(ctx, f.admin, &domain.ResourcePermission{
		EmployeeID: f.e1.ID,
		ContractID: 5,
		CanEdit:    true,
	}))

	d, err = f.engine.Authorize(ctx, f.e1, domain.ActionEdit, res)
	require.NoError(t, err)
	assert.Equal(t, DecisionGrantMatch, d)

	// 其他能力默认为 false
	d, err = f.engine.Authorize(ctx, f.e1, domain.ActionDelete, res)
	require.NoError(t, err)
	assert.Equal(t, DecisionDeny, d)

	d, err = f.engine.Authorize(ctx, f.e2, domain.ActionEdit, res)
	require.NoError(t, err)
	assert.Equal(t, DecisionDeny, d)
}

func TestGrantIsAdditiveOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := contract5(f.client.ID, f.e1.ID)

	// 全 false 的授权记录不会收回负责人的基础权限
	require.NoError(t, f.engine.SetPermission(ctx, f.admin, &domain.ResourcePermission{EmployeeID: f.e1.ID, ContractID: 5}))

	d, err := f.engine.Authorize(ctx, f.e1, domain.ActionRead, res)
	require.NoError(t, err)
	assert.Equal(t, DecisionOwnerMatch, d)
}

func TestGrantFlagMapping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := domain.Resource{ID: 5, ClientID: f.client.ID}

	require.NoError(t, f.engine.SetPermission(ctx, f.admin, &domain.ResourcePermission{
		EmployeeID: f.e1.ID,
		ContractID: 5,
		CanRead:    true,
		IsReviewer: true,
	}))

	want := map[domain.Action]Decision{
		domain.ActionRead:         DecisionGrantMatch,
		domain.ActionReview:       DecisionGrantMatch,
		domain.ActionWrite:        DecisionDeny,
		domain.ActionComment:      DecisionDeny,
		domain.ActionEdit:         DecisionDeny,
		domain.ActionStatusUpdate: DecisionDeny,
		domain.ActionDelete:       DecisionDeny,
		domain.ActionPrepare:      DecisionDeny,
	}
	for action, expected := range want {
		d, err := f.engine.Authorize(ctx, f.e1, action, res)
		require.NoError(t, err)
		assert.Equal(t, expected, d, action)
	}
}

func TestSetPermissionAdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, actor := range []domain.Identity{f.client, f.e1} {
		err := f.engine.SetPermission(ctx, actor, &domain.ResourcePermission{EmployeeID: f.e2.ID, ContractID: 5, CanDelete: true})
		assert.ErrorIs(t, err, domain.ErrForbidden)
	}

	_, err := f.engine.GetPermission(ctx, f.e2, f.e2.ID, 5)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.engine.ListPermissions(ctx, f.e2, f.e2.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	d, err := f.engine.Authorize(ctx, f.e2, domain.ActionDelete, domain.Resource{ID: 5})
	require.NoError(t, err)
	assert.Equal(t, DecisionDeny, d)
}

func TestSetPermissionTargetValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.engine.SetPermission(ctx, f.admin, &domain.ResourcePermission{EmployeeID: f.client.ID, ContractID: 5, CanRead: true})
	assert.ErrorIs(t, err, domain.ErrNotEmployee)

	err = f.engine.SetPermission(ctx, f.admin, &domain.ResourcePermission{EmployeeID: 999, ContractID: 5, CanRead: true})
	assert.ErrorIs(t, err, domain.ErrResourceNotFound)
}

func TestSetPermissionRecordsGrantor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.SetPermission(ctx, f.admin, &domain.ResourcePermission{EmployeeID: f.e1.ID, ContractID: 5, CanWrite: true}))
	require.NoError(t, f.engine.SetPermission(ctx, f.admin, &domain.ResourcePermission{EmployeeID: f.e1.ID, ContractID: 6, CanRead: true}))

	p, err := f.engine.GetPermission(ctx, f.admin, f.e1.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, f.admin.ID, p.GrantedBy)
	assert.True(t, p.CanWrite)

	list, err := f.engine.ListPermissions(ctx, f.admin, f.e1.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

type failingRepo struct {
	*memrepo.Repository
}

func (failingRepo) GetPermission(context.Context, int64, int64) (*domain.ResourcePermission, error) {
	return nil, errors.New("connection reset")
}

func TestAuthorizeStorageFailureDenies(t *testing.T) {
	f := newFixture(t)
	engine := NewEngine(failingRepo{f.repo}, f.repo)

	d, err := engine.Authorize(context.Background(), f.e1, domain.ActionEdit, domain.Resource{ID: 5})
	assert.Error(t, err)
	assert.Equal(t, DecisionDeny, d)
}
