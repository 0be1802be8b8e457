package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/koolaai/support_api/dto"
	"github.com/koolaai/support_api/middleware"
	"github.com/koolaai/support_api/model"
	"github.com/koolaai/support_api/shared"
)

type ChatServiceInterface interface {
	SendOwnerMessage(ctx context.Context, identity *shared.Identity, callerAddress string, req dto.ChatMessageRequest) (*dto.ChatMessageResponse, error)
	OwnerConversation(ctx context.Context, identity *shared.Identity, q dto.PageQuery) (*dto.ConversationPageResponse, error)
	UploadAttachment(ctx context.Context, identity *shared.Identity, callerAddress, challengeToken string, up dto.AttachmentUpload) (*model.Attachment, error)
}

type SupportServiceInterface interface {
	ListConversations(ctx context.Context, q dto.ConversationListQuery) (*dto.ConversationListResponse, error)
	UpdateConversation(ctx context.Context, identity *shared.Identity, req dto.UpdateConversationRequest) (*model.Conversation, error)
	OperatorMessages(ctx context.Context, identity *shared.Identity, conversationID string, q dto.PageQuery) (*dto.ConversationPageResponse, error)
	Reply(ctx context.Context, identity *shared.Identity, callerAddress, conversationID string, req dto.OperatorReplyRequest) (*dto.ChatMessageResponse, error)
	AbuseState(ctx context.Context, userID string) (*dto.AbuseStateResponse, error)
}

func currentIdentity(c *fiber.Ctx) (*shared.Identity, error) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return nil, shared.NewUnauthorizedError("Sign in required.")
	}
	return identity, nil
}

func pageQuery(c *fiber.Ctx) (dto.PageQuery, error) {
	var q dto.PageQuery
	if err := c.QueryParser(&q); err != nil {
		return q, shared.NewBadRequestError(err, "Invalid pagination parameters")
	}
	return q, nil
}
