// Package memrepo 提供与 repository.Repository 行为一致的内存实现，主要用于测试
package memrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/domain"
)

type permissionKey struct {
	employeeID int64
	contractID int64
}

type Repository struct {
	mu           sync.RWMutex
	nextUserID   int64
	users        map[int64]*domain.User
	permissions  map[permissionKey]domain.ResourcePermission
	contracts    map[int64]*domain.Contract
	comments     map[int64][]*domain.Comment
	nextComment  int64
	nextContract int64
}

func New() *Repository {
	return &Repository{
		users:       make(map[int64]*domain.User),
		permissions: make(map[permissionKey]domain.ResourcePermission),
		contracts:   make(map[int64]*domain.Contract),
		comments:    make(map[int64][]*domain.Comment),
	}
}

func (r *Repository) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Email == email && u.Status == domain.UserStatusActive {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *Repository) GetUserByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *Repository) UpsertUser(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.Status == domain.UserStatusActive && r.emailTaken(user.ID, user.Email) {
		return domain.ErrDuplicateEmail
	}

	if user.ID == 0 {
		r.nextUserID++
		user.ID = r.nextUserID
		user.CreatedAt = time.Now()
		user.Version = 1
		if user.Role == "" {
			user.Role = domain.RoleClient
		}
		if user.Status == "" {
			user.Status = domain.UserStatusPending
		}
		cp := *user
		r.users[user.ID] = &cp
		return nil
	}

	existing, ok := r.users[user.ID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if existing.Version != user.Version {
		return domain.ErrVersionConflict
	}
	user.Version++
	user.CreatedAt = existing.CreatedAt
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *Repository) MarkChannelVerified(_ context.Context, id int64, channel domain.Channel) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}

	next := *u
	switch channel {
	case domain.ChannelEmail:
		next.EmailVerified = true
	case domain.ChannelMobile:
		next.MobileVerified = true
	}
	if next.Status == domain.UserStatusPending && next.EmailVerified && next.MobileVerified {
		if r.emailTaken(next.ID, next.Email) {
			return nil, domain.ErrDuplicateEmail
		}
		next.Status = domain.UserStatusActive
	}
	next.Version++
	r.users[id] = &next

	cp := next
	return &cp, nil
}

// emailTaken 报告除 id 以外是否已有激活用户使用该邮箱，调用方需持有锁
func (r *Repository) emailTaken(id int64, email string) bool {
	for other, u := range r.users {
		if other != id && u.Email == email && u.Status == domain.UserStatusActive {
			return true
		}
	}
	return false
}

func (r *Repository) GetAllUsers(_ context.Context) ([]*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]*domain.User, 0, len(r.users))
	for _, u := range r.users {
		cp := *u
		users = append(users, &cp)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r *Repository) GetPermission(_ context.Context, employeeID, contractID int64) (*domain.ResourcePermission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.permissions[permissionKey{employeeID, contractID}]
	if !ok {
		return nil, domain.ErrResourceNotFound
	}
	return &p, nil
}

func (r *Repository) SetPermission(_ context.Context, p *domain.ResourcePermission) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p.UpdatedAt = time.Now()
	r.permissions[permissionKey{p.EmployeeID, p.ContractID}] = *p
	return nil
}

func (r *Repository) ListPermissions(_ context.Context, employeeID int64) ([]*domain.ResourcePermission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	perms := make([]*domain.ResourcePermission, 0)
	for k, p := range r.permissions {
		if k.employeeID == employeeID {
			cp := p
			perms = append(perms, &cp)
		}
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].ContractID < perms[j].ContractID })
	return perms, nil
}

// PutContract 直接写入一份合同，测试中用于准备数据
func (r *Repository) PutContract(c *domain.Contract) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.Version == 0 {
		c.Version = 1
	}
	cp := *c
	r.contracts[c.ID] = &cp
}

func (r *Repository) CreateContract(_ context.Context, c *domain.Contract) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[c.ClientID]; !ok {
		return domain.ErrResourceNotFound
	}
	for id := range r.contracts {
		if id > r.nextContract {
			r.nextContract = id
		}
	}
	r.nextContract++
	c.ID = r.nextContract
	if c.Status == "" {
		c.Status = domain.ContractStatusDraft
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	c.Version = 1
	cp := *c
	r.contracts[c.ID] = &cp
	return nil
}

func (r *Repository) GetContract(_ context.Context, id int64) (*domain.Contract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.contracts[id]
	if !ok {
		return nil, domain.ErrResourceNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *Repository) UpdateContract(_ context.Context, c *domain.Contract) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.contracts[c.ID]
	if !ok {
		return domain.ErrResourceNotFound
	}
	if existing.Version != c.Version {
		return domain.ErrVersionConflict
	}
	c.Version++
	c.UpdatedAt = time.Now()
	cp := *c
	r.contracts[c.ID] = &cp
	return nil
}

func (r *Repository) DeleteContract(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.contracts, id)
	delete(r.comments, id)
	return nil
}

func (r *Repository) GetComments(_ context.Context, contractID int64) ([]*domain.Comment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	comments := make([]*domain.Comment, 0, len(r.comments[contractID]))
	for _, c := range r.comments[contractID] {
		cp := *c
		comments = append(comments, &cp)
	}
	return comments, nil
}

func (r *Repository) CreateComment(_ context.Context, c *domain.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextComment++
	c.ID = r.nextComment
	c.CreatedAt = time.Now()
	cp := *c
	r.comments[c.ContractID] = append(r.comments[c.ContractID], &cp)
	return nil
}
