package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/domain"
)

const userColumns = `id, email, mobile, password_hash, full_name, company, role, status, email_verified, mobile_verified, created_at, version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	user := &domain.User{}
	dst := []any{
		&user.ID, &user.Email, &user.Mobile, &user.PasswordHash, &user.FullName, &user.Company,
		&user.Role, &user.Status, &user.EmailVerified, &user.MobileVerified, &user.CreatedAt, &user.Version,
	}
	if err := row.Scan(dst...); err != nil {
		return nil, err
	}
	return user, nil
}

func (r *Repository) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	user, err := scanUser(r.dbpool.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translateError(err, domain.ErrUserNotFound)
	}

	return user, nil
}

// GetUserByEmail 只返回已激活的用户。待验证和已注销的记录不通过邮箱查找
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND status = 'active'`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	user, err := scanUser(r.dbpool.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, translateError(err, domain.ErrUserNotFound)
	}

	return user, nil
}

func (r *Repository) GetAllUsers(ctx context.Context) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]*domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return users, nil
}

// UpsertUser 在 ID 为 0 时插入新用户，否则按版本号进行乐观锁更新
func (r *Repository) UpsertUser(ctx context.Context, user *domain.User) error {
	if user.ID == 0 {
		return r.createUser(ctx, user)
	}
	return r.updateUser(ctx, user)
}

func (r *Repository) createUser(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (email, mobile, password_hash, full_name, company, role, status, email_verified, mobile_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, version
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	if user.Role == "" {
		user.Role = domain.RoleClient
	}
	if user.Status == "" {
		user.Status = domain.UserStatusPending
	}

	args := []any{user.Email, user.Mobile, user.PasswordHash, user.FullName, user.Company, user.Role, user.Status, user.EmailVerified, user.MobileVerified}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&user.ID, &user.CreatedAt, &user.Version); err != nil {
		return translateError(err, domain.ErrUserNotFound)
	}

	return nil
}

func (r *Repository) updateUser(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET
			email = $1,
			mobile = $2,
			password_hash = $3,
			full_name = $4,
			company = $5,
			role = $6,
			status = $7,
			email_verified = $8,
			mobile_verified = $9,
			version = version + 1
		WHERE id = $10 AND version = $11
		RETURNING created_at, version
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	args := []any{
		user.Email, user.Mobile, user.PasswordHash, user.FullName, user.Company,
		user.Role, user.Status, user.EmailVerified, user.MobileVerified, user.ID, user.Version,
	}
	err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&user.CreatedAt, &user.Version)
	if errors.Is(err, sql.ErrNoRows) {
		// 版本号不匹配或用户不存在
		return domain.ErrVersionConflict
	}

	return translateError(err, domain.ErrUserNotFound)
}

// MarkChannelVerified 在一条语句内设置通道标记，并在两个通道都验证后激活账户，
// 因此两个通道的验证并发进行时不会互相覆盖。
// 若同一邮箱已有其他激活用户，唯一索引拒绝激活，返回 ErrDuplicateEmail
func (r *Repository) MarkChannelVerified(ctx context.Context, id int64, channel domain.Channel) (*domain.User, error) {
	query := `
		UPDATE users
		SET
			email_verified = email_verified OR $2,
			mobile_verified = mobile_verified OR $3,
			status = CASE
				WHEN status = 'pending' AND (email_verified OR $2) AND (mobile_verified OR $3) THEN 'active'
				ELSE status
			END,
			version = version + 1
		WHERE id = $1
		RETURNING ` + userColumns

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	isEmail := channel == domain.ChannelEmail
	isMobile := channel == domain.ChannelMobile

	user, err := scanUser(r.dbpool.QueryRowContext(ctx, query, id, isEmail, isMobile))
	if err != nil {
		return nil, translateError(err, domain.ErrUserNotFound)
	}

	return user, nil
}
