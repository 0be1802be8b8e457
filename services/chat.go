package services

import (
	"context"
	"os"
	"strconv"

	appContext "github.com/alphabatem/common/context"
	"github.com/koolaai/support_api/dto"
	"github.com/koolaai/support_api/model"
	"github.com/koolaai/support_api/services/abuse"
	"github.com/koolaai/support_api/services/ingest"
	"github.com/koolaai/support_api/services/ledger"
	"github.com/koolaai/support_api/shared"
	log "github.com/sirupsen/logrus"
)

const (
	OwnerPageSize        = 20
	OwnerMaxPageSize     = 50
	OperatorPageSize     = 30
	OperatorMaxPageSize  = 100
	ConversationPageSize = 20
)

const chatUnavailableMessage = "Chat is temporarily unavailable."

// ChatService is the gateway behind the /chat and /admin/chats routes.
type ChatService struct {
	appContext.DefaultService

	enabled bool

	ledger   *ledger.Ledger
	pipeline *ingest.Pipeline
	uploader *AttachmentUploader
	abuseSvc *AbuseService
}

const CHAT_SVC = "chat_svc"

func (svc ChatService) Id() string {
	return CHAT_SVC
}

func (svc *ChatService) Configure(ctx *appContext.Context) error {
	svc.enabled = true
	if v := os.Getenv("CHAT_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		svc.enabled = enabled
	}
	return svc.DefaultService.Configure(ctx)
}

func (svc *ChatService) Start() error {
	pgSvc := svc.Service(POSTGRES_SVC).(*PostgresService)
	svc.abuseSvc = svc.Service(ABUSE_SVC).(*AbuseService)
	notifySvc := svc.Service(NOTIFICATION_SVC).(*NotificationService)

	svc.ledger = ledger.New(pgSvc.Conversations())
	svc.pipeline = ingest.NewPipeline(svc.ledger, svc.abuseSvc.Escalator(), pgSvc.Profiles(), notifySvc.Outbox(), notifySvc.Composer())

	if minioSvc, ok := svc.Service(MINIO_SVC).(*MinIOService); ok {
		svc.uploader = NewAttachmentUploader(minioSvc, svc.abuseSvc.Escalator())
	} else {
		log.Warn("MinIO service not registered; attachment uploads are disabled")
	}

	log.WithField("enabled", svc.enabled).Info("Chat service ready")
	return nil
}

func principal(identity *shared.Identity) ingest.Principal {
	return ingest.Principal{
		UserID:        identity.UserID,
		Role:          identity.Role,
		EmailVerified: identity.EmailVerified,
	}
}

func (svc *ChatService) SendOwnerMessage(ctx context.Context, identity *shared.Identity, callerAddress string, req dto.ChatMessageRequest) (*dto.ChatMessageResponse, error) {
	if !svc.enabled {
		return nil, shared.NewUnavailableError(chatUnavailableMessage)
	}

	res, err := svc.pipeline.Submit(ctx, ingest.Inbound{
		Side:           shared.SideOwner,
		Principal:      principal(identity),
		CallerAddress:  callerAddress,
		Body:           req.Message,
		Attachments:    req.Attachments,
		ChallengeToken: req.ChallengeToken,
	})
	if err != nil {
		return nil, err
	}

	return &dto.ChatMessageResponse{OK: true, ConversationID: res.ConversationID, MessageID: res.MessageID}, nil
}

// OwnerConversation returns the owner's most recently active thread and marks
// operator messages read.
func (svc *ChatService) OwnerConversation(ctx context.Context, identity *shared.Identity, q dto.PageQuery) (*dto.ConversationPageResponse, error) {
	if !svc.enabled {
		return nil, shared.NewUnavailableError(chatUnavailableMessage)
	}
	if identity.Role != shared.RoleOwner {
		return nil, shared.NewPermissionError("Only customers have a support conversation.")
	}

	q = q.Normalize(OwnerPageSize, OwnerMaxPageSize)
	thread, err := svc.ledger.Fetch(ctx, ledger.Viewer{Side: shared.SideOwner, ID: identity.UserID}, "", ledger.Page{Number: q.Page, Size: q.PageSize})
	if err != nil {
		return nil, err
	}
	return threadResponse(thread, q), nil
}

func (svc *ChatService) UploadAttachment(ctx context.Context, identity *shared.Identity, callerAddress, challengeToken string, up dto.AttachmentUpload) (*model.Attachment, error) {
	if !svc.enabled || svc.uploader == nil {
		return nil, shared.NewUnavailableError(chatUnavailableMessage)
	}
	return svc.uploader.Upload(ctx, identity, abuse.Attempt{
		UserID:         identity.UserID,
		CallerAddress:  callerAddress,
		ChallengeToken: challengeToken,
	}, up)
}

func (svc *ChatService) ListConversations(ctx context.Context, q dto.ConversationListQuery) (*dto.ConversationListResponse, error) {
	if err := q.Validate(); err != nil {
		return nil, dto.AsAppError(err)
	}

	page := q.PageQuery.Normalize(ConversationPageSize, OperatorMaxPageSize)
	convs, total, err := svc.ledger.List(ctx, ledger.ListFilter{
		Status:     model.ConversationStatus(q.Status),
		AssignedTo: q.AssignedTo,
	}, ledger.Page{Number: page.Page, Size: page.PageSize})
	if err != nil {
		return nil, err
	}

	return &dto.ConversationListResponse{Conversations: convs, Pagination: dto.NewPagination(page, total)}, nil
}

func (svc *ChatService) UpdateConversation(ctx context.Context, identity *shared.Identity, req dto.UpdateConversationRequest) (*model.Conversation, error) {
	if err := req.Validate(); err != nil {
		return nil, dto.AsAppError(err)
	}

	var patch ledger.Patch
	if req.Status != nil {
		status := model.ConversationStatus(*req.Status)
		patch.Status = &status
	}
	patch.AssignedTo = req.AssignedTo

	return svc.ledger.Update(ctx, ledger.Actor{ID: identity.UserID, Role: identity.Role}, req.ID, patch)
}

// OperatorMessages returns a page of one conversation and marks owner messages read.
func (svc *ChatService) OperatorMessages(ctx context.Context, identity *shared.Identity, conversationID string, q dto.PageQuery) (*dto.ConversationPageResponse, error) {
	q = q.Normalize(OperatorPageSize, OperatorMaxPageSize)
	thread, err := svc.ledger.Fetch(ctx, ledger.Viewer{Side: shared.SideOperator, ID: identity.UserID}, conversationID, ledger.Page{Number: q.Page, Size: q.PageSize})
	if err != nil {
		return nil, err
	}
	return threadResponse(thread, q), nil
}

func (svc *ChatService) Reply(ctx context.Context, identity *shared.Identity, callerAddress, conversationID string, req dto.OperatorReplyRequest) (*dto.ChatMessageResponse, error) {
	res, err := svc.pipeline.Submit(ctx, ingest.Inbound{
		Side:           shared.SideOperator,
		Principal:      principal(identity),
		CallerAddress:  callerAddress,
		ConversationID: conversationID,
		Body:           req.Body,
		Attachments:    req.Attachments,
	})
	if err != nil {
		return nil, err
	}

	return &dto.ChatMessageResponse{OK: true, ConversationID: res.ConversationID, MessageID: res.MessageID}, nil
}

func (svc *ChatService) AbuseState(ctx context.Context, userID string) (*dto.AbuseStateResponse, error) {
	if userID == "" {
		return nil, shared.NewValidationError("User id is required.", nil)
	}
	return svc.abuseSvc.State(ctx, userID)
}

func threadResponse(thread *ledger.Thread, q dto.PageQuery) *dto.ConversationPageResponse {
	return &dto.ConversationPageResponse{
		Conversation: thread.Conversation,
		Messages:     thread.Messages,
		Pagination:   dto.NewPagination(q, thread.Total),
	}
}
