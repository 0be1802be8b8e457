package dto

import "github.com/koolaai/support_api/model"

// ==================== CHAT REQUEST DTOs ====================

type ChatMessageRequest struct {
	Message        string             `json:"message" example:"Hi, my order has not arrived yet"`
	Attachments    []model.Attachment `json:"attachments,omitempty"`
	ChallengeToken string             `json:"challenge_token,omitempty" example:"0.zrSnRHO7h0HwSjSCU8oyzbjEtD8p"`
}

type OperatorReplyRequest struct {
	Body        string             `json:"body" example:"Thanks for reaching out, we are looking into it"`
	Attachments []model.Attachment `json:"attachments,omitempty"`
}

// UpdateConversationRequest patches status or assignment. An empty AssignedTo clears the assignment.
type UpdateConversationRequest struct {
	ID         string  `json:"id" validate:"required" example:"0192f5c4-7c1e-7b0a-9d7e-65b1c0a1d001"`
	Status     *string `json:"status,omitempty" validate:"omitempty,oneof=open closed" example:"closed"`
	AssignedTo *string `json:"assigned_to,omitempty" example:"0192f5c4-7c1e-7b0a-9d7e-65b1c0a1d0ff"`
}

func (r UpdateConversationRequest) Validate() error {
	return GetValidator().Struct(r)
}

type PageQuery struct {
	Page     int `query:"page" validate:"gte=0" example:"1"`
	PageSize int `query:"page_size" validate:"gte=0" example:"20"`
}

// Normalize applies defaults and clamps page size to max.
func (q PageQuery) Normalize(defaultSize, maxSize int) PageQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = defaultSize
	}
	if q.PageSize > maxSize {
		q.PageSize = maxSize
	}
	return q
}

type ConversationListQuery struct {
	PageQuery
	Status     string `query:"status" validate:"omitempty,oneof=open closed" example:"open"`
	AssignedTo string `query:"assigned_to" example:"0192f5c4-7c1e-7b0a-9d7e-65b1c0a1d0ff"`
}

func (q ConversationListQuery) Validate() error {
	return GetValidator().Struct(q)
}

// ==================== CHAT RESPONSE DTOs ====================

type ChatMessageResponse struct {
	OK             bool   `json:"ok" example:"true"`
	ConversationID string `json:"conversation_id" example:"0192f5c4-7c1e-7b0a-9d7e-65b1c0a1d001"`
	MessageID      string `json:"message_id" example:"0192f5c4-7c1e-7b0a-9d7e-65b1c0a1d002"`
}

type Pagination struct {
	Page     int   `json:"page" example:"1"`
	PageSize int   `json:"page_size" example:"20"`
	Total    int64 `json:"total" example:"42"`
	HasMore  bool  `json:"has_more" example:"true"`
}

func NewPagination(q PageQuery, total int64) Pagination {
	return Pagination{
		Page:     q.Page,
		PageSize: q.PageSize,
		Total:    total,
		HasMore:  int64(q.Page*q.PageSize) < total,
	}
}

type ConversationPageResponse struct {
	Conversation *model.Conversation `json:"conversation"`
	Messages     []model.Message     `json:"messages"`
	Pagination   Pagination          `json:"pagination"`
}

type ConversationListResponse struct {
	Conversations []model.Conversation `json:"conversations"`
	Pagination    Pagination           `json:"pagination"`
}
