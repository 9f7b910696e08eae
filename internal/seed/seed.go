// Package seed 生成演示用的客户、员工和合同
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/credential"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/domain"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/utils"
)

type UserCreator interface {
	CreateActiveUser(ctx context.Context, email, mobile, password string, role domain.Role, profile credential.Profile) (*domain.User, error)
}

type Store interface {
	GetAllUsers(ctx context.Context) ([]*domain.User, error)
	CreateContract(ctx context.Context, c *domain.Contract) error
	SetPermission(ctx context.Context, p *domain.ResourcePermission) error
}

type Seeder struct {
	users       UserCreator
	store       Store
	password    string
	emailDomain string
}

func NewSeeder(users UserCreator, store Store, password, emailDomain string) *Seeder {
	return &Seeder{
		users:       users,
		store:       store,
		password:    password,
		emailDomain: emailDomain,
	}
}

// SeedUsers 插入 n 个指定角色的已激活用户，返回成功插入的数量。邮箱重复的用户会被跳过
func (s *Seeder) SeedUsers(ctx context.Context, n int, role domain.Role) (int, error) {
	if !role.Valid() {
		return 0, fmt.Errorf("invalid role %q", role)
	}

	cnt := 0
	for i := 0; i < n; i++ {
		fullName := utils.GenerateRandomChineseName()
		profile := credential.Profile{FullName: fullName}
		if role == domain.RoleClient {
			profile.Company = utils.GenerateRandomCompany()
		}

		email := utils.GenerateEmailLocalPart(fullName) + "@" + s.emailDomain
		if _, err := s.users.CreateActiveUser(ctx, email, utils.GenerateRandomMobile(), s.password, role, profile); err != nil {
			if errors.Is(err, domain.ErrDuplicateEmail) {
				slog.Warn("邮箱重复，跳过", "email", email)
				continue
			}
			return cnt, err
		}

		cnt++
	}

	return cnt, nil
}

// SeedContracts 为随机客户生成 n 份合同，部分合同会分配负责员工，并给另一名员工授予审核权限
func (s *Seeder) SeedContracts(ctx context.Context, n int) (int, error) {
	users, err := s.store.GetAllUsers(ctx)
	if err != nil {
		return 0, err
	}

	var clients, employees []*domain.User
	var admin *domain.User
	for _, u := range users {
		if !u.IsActive() {
			continue
		}
		switch u.Role {
		case domain.RoleClient:
			clients = append(clients, u)
		case domain.RoleEmployee:
			employees = append(employees, u)
		case domain.RoleAdmin:
			if admin == nil {
				admin = u
			}
		}
	}
	if len(clients) == 0 {
		return 0, errors.New("没有可用的客户，请先插入客户")
	}

	cnt := 0
	for i := 0; i < n; i++ {
		client := clients[rand.Intn(len(clients))]

		c := &domain.Contract{
			Title:    utils.GenerateRandomContractTitle(client.Company),
			Body:     "合同编号 " + utils.GenerateRandomID(4, 8),
			Status:   domain.ContractStatusDraft,
			ClientID: client.ID,
		}

		perm := rand.Perm(len(employees))
		if len(perm) > 0 && rand.Intn(4) != 0 {
			c.AssignedEmployeeID = &employees[perm[0]].ID
		}

		if err := s.store.CreateContract(ctx, c); err != nil {
			return cnt, err
		}
		cnt++

		if admin != nil && len(perm) > 1 {
			if err := s.store.SetPermission(ctx, &domain.ResourcePermission{
				EmployeeID: employees[perm[1]].ID,
				ContractID: c.ID,
				CanRead:    true,
				CanWrite:   true,
				IsReviewer: true,
				GrantedBy:  admin.ID,
			}); err != nil {
				return cnt, err
			}
		}
	}

	return cnt, nil
}
