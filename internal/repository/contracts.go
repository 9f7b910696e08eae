package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/domain"
)

const contractColumns = `id, title, body, status, client_id, assigned_employee_id, created_at, updated_at, version`

func scanContract(row rowScanner) (*domain.Contract, error) {
	c := &domain.Contract{}
	var assigned sql.NullInt64
	dst := []any{&c.ID, &c.Title, &c.Body, &c.Status, &c.ClientID, &assigned, &c.CreatedAt, &c.UpdatedAt, &c.Version}
	if err := row.Scan(dst...); err != nil {
		return nil, err
	}
	if assigned.Valid {
		c.AssignedEmployeeID = &assigned.Int64
	}
	return c, nil
}

func (r *Repository) GetContract(ctx context.Context, id int64) (*domain.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	c, err := scanContract(r.dbpool.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translateError(err, domain.ErrResourceNotFound)
	}

	return c, nil
}

func (r *Repository) CreateContract(ctx context.Context, c *domain.Contract) error {
	query := `
		INSERT INTO contracts (title, body, status, client_id, assigned_employee_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at, version
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	if c.Status == "" {
		c.Status = domain.ContractStatusDraft
	}

	args := []any{c.Title, c.Body, c.Status, c.ClientID, c.AssignedEmployeeID}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt, &c.Version); err != nil {
		return translateError(err, domain.ErrResourceNotFound)
	}

	return nil
}

func (r *Repository) UpdateContract(ctx context.Context, c *domain.Contract) error {
	query := `
		UPDATE contracts
		SET
			title = $1,
			body = $2,
			status = $3,
			assigned_employee_id = $4,
			updated_at = now(),
			version = version + 1
		WHERE id = $5 AND version = $6
		RETURNING updated_at, version
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	args := []any{c.Title, c.Body, c.Status, c.AssignedEmployeeID, c.ID, c.Version}
	err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&c.UpdatedAt, &c.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrVersionConflict
	}

	return translateError(err, domain.ErrResourceNotFound)
}

func (r *Repository) DeleteContract(ctx context.Context, id int64) error {
	query := `DELETE FROM contracts WHERE id = $1`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	_, err := r.dbpool.ExecContext(ctx, query, id)
	return err
}

func (r *Repository) GetComments(ctx context.Context, contractID int64) ([]*domain.Comment, error) {
	query := `
		SELECT id, contract_id, author_id, parent_id, body, created_at
		FROM comments WHERE contract_id = $1 ORDER BY created_at, id
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := make([]*domain.Comment, 0)
	for rows.Next() {
		c := &domain.Comment{}
		var parent sql.NullInt64
		if err := rows.Scan(&c.ID, &c.ContractID, &c.AuthorID, &parent, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		if parent.Valid {
			c.ParentID = &parent.Int64
		}
		comments = append(comments, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return comments, nil
}

func (r *Repository) CreateComment(ctx context.Context, c *domain.Comment) error {
	query := `
		INSERT INTO comments (contract_id, author_id, parent_id, body)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	args := []any{c.ContractID, c.AuthorID, c.ParentID, c.Body}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&c.ID, &c.CreatedAt); err != nil {
		return translateError(err, domain.ErrResourceNotFound)
	}

	return nil
}
