package repository

import (
	"context"

	"github.com/sysu-ecnc-dev/contract-portal/backend/internal/domain"
)

const permissionColumns = `employee_id, contract_id, can_read, can_write, can_edit, can_delete, is_reviewer, is_preparer, granted_by, updated_at`

func scanPermission(row rowScanner) (*domain.ResourcePermission, error) {
	p := &domain.ResourcePermission{}
	dst := []any{
		&p.EmployeeID, &p.ContractID, &p.CanRead, &p.CanWrite, &p.CanEdit, &p.CanDelete,
		&p.IsReviewer, &p.IsPreparer, &p.GrantedBy, &p.UpdatedAt,
	}
	if err := row.Scan(dst...); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Repository) GetPermission(ctx context.Context, employeeID, contractID int64) (*domain.ResourcePermission, error) {
	query := `SELECT ` + permissionColumns + ` FROM resource_permissions WHERE employee_id = $1 AND contract_id = $2`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	p, err := scanPermission(r.dbpool.QueryRowContext(ctx, query, employeeID, contractID))
	if err != nil {
		return nil, translateError(err, domain.ErrResourceNotFound)
	}

	return p, nil
}

// SetPermission 以 (employee_id, contract_id) 为键整体覆盖六个能力位
func (r *Repository) SetPermission(ctx context.Context, p *domain.ResourcePermission) error {
	query := `
		INSERT INTO resource_permissions (employee_id, contract_id, can_read, can_write, can_edit, can_delete, is_reviewer, is_preparer, granted_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (employee_id, contract_id) DO UPDATE
		SET
			can_read = EXCLUDED.can_read,
			can_write = EXCLUDED.can_write,
			can_edit = EXCLUDED.can_edit,
			can_delete = EXCLUDED.can_delete,
			is_reviewer = EXCLUDED.is_reviewer,
			is_preparer = EXCLUDED.is_preparer,
			granted_by = EXCLUDED.granted_by,
			updated_at = now()
		RETURNING updated_at
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	args := []any{p.EmployeeID, p.ContractID, p.CanRead, p.CanWrite, p.CanEdit, p.CanDelete, p.IsReviewer, p.IsPreparer, p.GrantedBy}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&p.UpdatedAt); err != nil {
		return translateError(err, domain.ErrResourceNotFound)
	}

	return nil
}

func (r *Repository) ListPermissions(ctx context.Context, employeeID int64) ([]*domain.ResourcePermission, error) {
	query := `SELECT ` + permissionColumns + ` FROM resource_permissions WHERE employee_id = $1 ORDER BY contract_id`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	perms := make([]*domain.ResourcePermission, 0)
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return perms, nil
}
