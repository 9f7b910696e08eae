package domain

import "time"

type Action string

const (
	ActionRead         Action = "read"
	ActionWrite        Action = "write"
	ActionComment      Action = "comment"
	ActionEdit         Action = "edit"
	ActionStatusUpdate Action = "status-update"
	ActionDelete       Action = "delete"
	ActionReview       Action = "review"
	ActionPrepare      Action = "prepare"
)

type ResourcePermission struct {
	EmployeeID int64     `json:"employeeId"`
	ContractID int64     `json:"contractId"`
	CanRead    bool      `json:"canRead"`
	CanWrite   bool      `json:"canWrite"`
	CanEdit    bool      `json:"canEdit"`
	CanDelete  bool      `json:"canDelete"`
	IsReviewer bool      `json:"isReviewer"`
	IsPreparer bool      `json:"isPreparer"`
	GrantedBy  int64     `json:"grantedBy"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Allows 返回该授权记录中与 action 对应的能力位
func (p *ResourcePermission) Allows(action Action) bool {
	switch action {
	case ActionRead:
		return p.CanRead
	case ActionWrite, ActionComment:
		return p.CanWrite
	case ActionEdit, ActionStatusUpdate:
		return p.CanEdit
	case ActionDelete:
		return p.CanDelete
	case ActionReview:
		return p.IsReviewer
	case ActionPrepare:
		return p.IsPreparer
	}
	return false
}

// Resource 是鉴权时所需的合同归属信息
type Resource struct {
	ID                 int64
	ClientID           int64
	AssignedEmployeeID *int64
}
