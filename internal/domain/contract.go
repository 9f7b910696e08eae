package domain

import "time"

type ContractStatus string

const (
	ContractStatusDraft     ContractStatus = "draft"
	ContractStatusPrepared  ContractStatus = "prepared"
	ContractStatusInReview  ContractStatus = "in_review"
	ContractStatusApproved  ContractStatus = "approved"
	ContractStatusRejected  ContractStatus = "rejected"
	ContractStatusSigned    ContractStatus = "signed"
	ContractStatusCancelled ContractStatus = "cancelled"
)

type Contract struct {
	ID                 int64          `json:"id"`
	Title              string         `json:"title"`
	Body               string         `json:"body"`
	Status             ContractStatus `json:"status"`
	ClientID           int64          `json:"clientId"`
	AssignedEmployeeID *int64         `json:"assignedEmployeeId"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
	Version            int32          `json:"version"`
}

func (c *Contract) Resource() Resource {
	return Resource{
		ID:                 c.ID,
		ClientID:           c.ClientID,
		AssignedEmployeeID: c.AssignedEmployeeID,
	}
}

type Comment struct {
	ID         int64     `json:"id"`
	ContractID int64     `json:"contractId"`
	AuthorID   int64     `json:"authorId"`
	ParentID   *int64    `json:"parentId"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"createdAt"`
}
