package credential

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/domain"
	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/repository/memrepo"
)

func newTestStore(t *testing.T) (*Store, *memrepo.Repository) {
	t.Helper()

	hasher := NewHasher(2, bcrypt.MinCost)
	t.Cleanup(hasher.Close)

	repo := memrepo.New()
	return NewStore(repo, hasher), repo
}

func activate(t *testing.T, s *Store, id int64) {
	t.Helper()

	_, err := s.MarkChannelVerified(context.Background(), id, domain.ChannelEmail)
	require.NoError(t, err)
	u, err := s.MarkChannelVerified(context.Background(), id, domain.ChannelMobile)
	require.NoError(t, err)
	require.True(t, u.IsActive())
}

func TestCreatePendingUserStoresHashOnly(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	u, err := s.CreatePendingUser(ctx, " A@X.com ", "13800000000", "s3cret-pass", Profile{FullName: "Alice"})
	require.NoError(t, err)

	assert.Equal(t, "a@x.com", u.Email)
	assert.Equal(t, domain.RoleClient, u.Role)
	assert.Equal(t, domain.UserStatusPending, u.Status)
	assert.NotEqual(t, "s3cret-pass", u.PasswordHash)
	assert.True(t, strings.HasPrefix(u.PasswordHash, "$2"))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("s3cret-pass")))
}

func TestCreatePendingUserDuplicateActiveEmail(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	u, err := s.CreatePendingUser(ctx, "a@x.com", "1", "password-1", Profile{})
	require.NoError(t, err)
	activate(t, s, u.ID)

	_, err = s.CreatePendingUser(ctx, "a@x.com", "2", "password-2", Profile{})
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)
}

func TestCreatePendingUserLeavesExistingPendingRecord(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreatePendingUser(ctx, "a@x.com", "13800000000", "owner-password", Profile{})
	require.NoError(t, err)
	_, err = s.MarkChannelVerified(ctx, first.ID, domain.ChannelMobile)
	require.NoError(t, err)

	second, err := s.CreatePendingUser(ctx, "a@x.com", "13999999999", "other-password", Profile{})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	// 第一条记录的凭据和验证进度保持不变
	got, err := s.GetUserByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "13800000000", got.Mobile)
	assert.True(t, got.MobileVerified)
	assert.Equal(t, first.PasswordHash, got.PasswordHash)

	activated, err := s.MarkChannelVerified(ctx, first.ID, domain.ChannelEmail)
	require.NoError(t, err)
	require.True(t, activated.IsActive())

	_, err = s.VerifyPassword(ctx, "a@x.com", "owner-password")
	assert.NoError(t, err)
	_, err = s.VerifyPassword(ctx, "a@x.com", "other-password")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestActivationConflictsWithActiveEmail(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreatePendingUser(ctx, "a@x.com", "1", "password-1", Profile{})
	require.NoError(t, err)
	second, err := s.CreatePendingUser(ctx, "a@x.com", "2", "password-2", Profile{})
	require.NoError(t, err)

	activate(t, s, first.ID)

	_, err = s.MarkChannelVerified(ctx, second.ID, domain.ChannelEmail)
	require.NoError(t, err)
	_, err = s.MarkChannelVerified(ctx, second.ID, domain.ChannelMobile)
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)

	got, err := s.GetUserByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UserStatusPending, got.Status)
}

func TestConcurrentFirstRegistrationsSameEmail(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreatePendingUser(ctx, "a@x.com", "1", "password-1", Profile{})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestVerifyPassword(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	u, err := s.CreatePendingUser(ctx, "a@x.com", "1", "right-password", Profile{})
	require.NoError(t, err)

	// 未激活的账户不能登录
	_, err = s.VerifyPassword(ctx, "a@x.com", "right-password")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	activate(t, s, u.ID)

	got, err := s.VerifyPassword(ctx, "A@x.com", "right-password")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.VerifyPassword(ctx, "a@x.com", "wrong-password")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = s.VerifyPassword(ctx, "nobody@x.com", "right-password")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestUpdatePassword(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	u, err := s.CreatePendingUser(ctx, "a@x.com", "1", "old-password", Profile{})
	require.NoError(t, err)
	activate(t, s, u.ID)

	require.NoError(t, s.UpdatePassword(ctx, u.ID, "new-password"))

	_, err = s.VerifyPassword(ctx, "a@x.com", "old-password")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = s.VerifyPassword(ctx, "a@x.com", "new-password")
	assert.NoError(t, err)

	assert.ErrorIs(t, s.UpdatePassword(ctx, 999, "x-password"), domain.ErrUserNotFound)
}

func TestConcurrentLoginsSameEmail(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	u, err := s.CreatePendingUser(ctx, "a@x.com", "1", "right-password", Profile{})
	require.NoError(t, err)
	activate(t, s, u.ID)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.VerifyPassword(ctx, "a@x.com", "right-password")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestCheckPassword(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	u, err := s.CreateActiveUser(ctx, "admin@x.com", "", "admin-password", domain.RoleAdmin, Profile{FullName: "管理员"})
	require.NoError(t, err)
	assert.True(t, u.IsActive())
	assert.Equal(t, domain.RoleAdmin, u.Role)

	assert.NoError(t, s.CheckPassword(ctx, u.ID, "admin-password"))
	assert.ErrorIs(t, s.CheckPassword(ctx, u.ID, "nope"), domain.ErrInvalidCredentials)

	_, err = s.CreateActiveUser(ctx, "ADMIN@x.com", "", "other-password", domain.RoleAdmin, Profile{})
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)
}
