package seed

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/credential"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/domain"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/repository/memrepo"
)

func newTestSeeder(t *testing.T) (*Seeder, *credential.Store, *memrepo.Repository) {
	t.Helper()

	hasher := credential.NewHasher(2, bcrypt.MinCost)
	t.Cleanup(hasher.Close)

	repo := memrepo.New()
	store := credential.NewStore(repo, hasher)
	return NewSeeder(store, repo, "demo-password", "example.com"), store, repo
}

func TestSeedUsers(t *testing.T) {
	s, store, repo := newTestSeeder(t)
	ctx := context.Background()

	n, err := s.SeedUsers(ctx, 5, domain.RoleClient)
	require.NoError(t, err)
	assert.Positive(t, n)

	users, err := repo.GetAllUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, n)

	for _, u := range users {
		assert.True(t, strings.HasSuffix(u.Email, "@example.com"))
		assert.Equal(t, domain.RoleClient, u.Role)
		assert.NotEmpty(t, u.Company)

		_, err := store.VerifyPassword(ctx, u.Email, "demo-password")
		assert.NoError(t, err)
	}

	_, err = s.SeedUsers(ctx, 1, domain.Role("root"))
	assert.Error(t, err)
}

func TestSeedContracts(t *testing.T) {
	s, store, repo := newTestSeeder(t)
	ctx := context.Background()

	_, err := s.SeedContracts(ctx, 3)
	require.Error(t, err)

	admin, err := store.CreateActiveUser(ctx, "admin@example.com", "", "admin-password", domain.RoleAdmin, credential.Profile{})
	require.NoError(t, err)
	_, err = s.SeedUsers(ctx, 2, domain.RoleClient)
	require.NoError(t, err)
	_, err = store.CreateActiveUser(ctx, "e1@example.com", "", "pw-123456", domain.RoleEmployee, credential.Profile{})
	require.NoError(t, err)
	_, err = store.CreateActiveUser(ctx, "e2@example.com", "", "pw-123456", domain.RoleEmployee, credential.Profile{})
	require.NoError(t, err)

	n, err := s.SeedContracts(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	for id := int64(1); id <= 4; id++ {
		c, err := repo.GetContract(ctx, id)
		require.NoError(t, err)
		client, err := repo.GetUserByID(ctx, c.ClientID)
		require.NoError(t, err)
		assert.Equal(t, domain.RoleClient, client.Role)
	}

	users, err := repo.GetAllUsers(ctx)
	require.NoError(t, err)
	granted := 0
	for _, u := range users {
		perms, err := repo.ListPermissions(ctx, u.ID)
		require.NoError(t, err)
		for _, p := range perms {
			assert.Equal(t, admin.ID, p.GrantedBy)
			assert.True(t, p.IsReviewer)
		}
		granted += len(perms)
	}
	assert.Equal(t, 4, granted)
}
