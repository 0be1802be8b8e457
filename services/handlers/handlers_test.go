package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/koolaai/support_api/dto"
	"github.com/koolaai/support_api/middleware"
	"github.com/koolaai/support_api/model"
	"github.com/koolaai/support_api/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatService struct {
	err error

	address        string
	challengeToken string
	message        dto.ChatMessageRequest
	page           dto.PageQuery
	upload         dto.AttachmentUpload
	uploadBody     []byte
	listQuery      dto.ConversationListQuery
	update         dto.UpdateConversationRequest
	conversationID string
	reply          dto.OperatorReplyRequest
	abuseUserID    string
}

func (f *fakeChatService) SendOwnerMessage(ctx context.Context, identity *shared.Identity, callerAddress string, req dto.ChatMessageRequest) (*dto.ChatMessageResponse, error) {
	f.address, f.message = callerAddress, req
	if f.err != nil {
		return nil, f.err
	}
	return &dto.ChatMessageResponse{OK: true, ConversationID: "conv-1", MessageID: "msg-1"}, nil
}

func (f *fakeChatService) OwnerConversation(ctx context.Context, identity *shared.Identity, q dto.PageQuery) (*dto.ConversationPageResponse, error) {
	f.page = q
	if f.err != nil {
		return nil, f.err
	}
	return &dto.ConversationPageResponse{Messages: []model.Message{}}, nil
}

func (f *fakeChatService) UploadAttachment(ctx context.Context, identity *shared.Identity, callerAddress, challengeToken string, up dto.AttachmentUpload) (*model.Attachment, error) {
	f.challengeToken, f.upload = challengeToken, up
	body, err := io.ReadAll(up.Body)
	if err != nil {
		return nil, err
	}
	f.uploadBody = body
	return &model.Attachment{Path: identity.UserID + "/1-" + up.Name, URL: "https://files.test/x", Type: up.ContentType, Size: up.Size, Name: up.Name}, nil
}

func (f *fakeChatService) ListConversations(ctx context.Context, q dto.ConversationListQuery) (*dto.ConversationListResponse, error) {
	f.listQuery = q
	return &dto.ConversationListResponse{Conversations: []model.Conversation{}}, f.err
}

func (f *fakeChatService) UpdateConversation(ctx context.Context, identity *shared.Identity, req dto.UpdateConversationRequest) (*model.Conversation, error) {
	f.update = req
	if f.err != nil {
		return nil, f.err
	}
	return &model.Conversation{ID: req.ID, Status: model.ConversationClosed}, nil
}

func (f *fakeChatService) OperatorMessages(ctx context.Context, identity *shared.Identity, conversationID string, q dto.PageQuery) (*dto.ConversationPageResponse, error) {
	f.conversationID, f.page = conversationID, q
	if f.err != nil {
		return nil, f.err
	}
	return &dto.ConversationPageResponse{Messages: []model.Message{}}, nil
}

func (f *fakeChatService) Reply(ctx context.Context, identity *shared.Identity, callerAddress, conversationID string, req dto.OperatorReplyRequest) (*dto.ChatMessageResponse, error) {
	f.conversationID, f.reply = conversationID, req
	if f.err != nil {
		return nil, f.err
	}
	return &dto.ChatMessageResponse{OK: true, ConversationID: conversationID, MessageID: "msg-2"}, nil
}

func (f *fakeChatService) AbuseState(ctx context.Context, userID string) (*dto.AbuseStateResponse, error) {
	f.abuseUserID = userID
	return &dto.AbuseStateResponse{UserID: userID, State: "clear"}, f.err
}

type staticVerifier map[string]*shared.Identity

func (v staticVerifier) VerifyJWTToken(token string) (*shared.Identity, error) {
	if identity, ok := v[token]; ok {
		return identity, nil
	}
	return nil, errors.New("bad token")
}

var tokens = staticVerifier{
	"owner-token": {UserID: "owner-1", Role: shared.RoleOwner, EmailVerified: true},
	"agent-token": {UserID: "agent-1", Role: shared.RoleOperator, EmailVerified: true},
}

func newTestApp(svc *fakeChatService) *fiber.App {
	// app.Test connects from 0.0.0.0; trust it so forwarded addresses are read.
	app := fiber.New(middleware.TrustProxies(fiber.Config{ErrorHandler: shared.ResponseError}, "", []string{"0.0.0.0"}))
	auth := middleware.RequiredAuth(tokens)

	chat := NewChatHandler(svc)
	chatGroup := app.Group("/chat", auth)
	chatGroup.Post("/message", chat.SendMessage)
	chatGroup.Get("/conversation", chat.GetConversation)
	chatGroup.Post("/attachments", chat.UploadAttachment)

	admin := NewAdminHandler(svc)
	adminGroup := app.Group("/admin", auth, middleware.RequireSupport())
	adminGroup.Get("/chats", admin.ListConversations)
	adminGroup.Patch("/chats", admin.UpdateConversation)
	adminGroup.Get("/chats/:conversationId/messages", admin.GetMessages)
	adminGroup.Post("/chats/:conversationId/messages", admin.Reply)
	adminGroup.Get("/abuse/:userId", admin.AbuseState)
	return app
}

func do(t *testing.T, app *fiber.App, req *http.Request, token string) (*http.Response, map[string]interface{}) {
	t.Helper()
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, sonic.Unmarshal(raw, &body), string(raw))
	return resp, body
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return req
}

func data(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	d, ok := body["data"].(map[string]interface{})
	require.True(t, ok, "missing data in %v", body)
	return d
}

func TestSendMessage(t *testing.T) {
	svc := &fakeChatService{}
	app := newTestApp(svc)

	req := jsonRequest(http.MethodPost, "/chat/message", `{"message":"hello","challenge_token":"tok"}`)
	req.Header.Set(fiber.HeaderXForwardedFor, "198.51.100.4, 10.0.0.1")
	resp, body := do(t, app, req, "owner-token")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "conv-1", data(t, body)["conversation_id"])
	assert.Equal(t, true, data(t, body)["ok"])
	assert.Equal(t, "hello", svc.message.Message)
	assert.Equal(t, "tok", svc.message.ChallengeToken)
	assert.Equal(t, "198.51.100.4", svc.address)
}

func TestSendMessageChallengeHeader(t *testing.T) {
	svc := &fakeChatService{}
	app := newTestApp(svc)

	req := jsonRequest(http.MethodPost, "/chat/message", `{"message":"hello"}`)
	req.Header.Set(challengeTokenHeader, "header-token")
	resp, _ := do(t, app, req, "owner-token")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "header-token", svc.message.ChallengeToken)
}

func TestSendMessageErrors(t *testing.T) {
	t.Run("unauthenticated", func(t *testing.T) {
		resp, _ := do(t, newTestApp(&fakeChatService{}), jsonRequest(http.MethodPost, "/chat/message", `{}`), "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("malformed body", func(t *testing.T) {
		resp, _ := do(t, newTestApp(&fakeChatService{}), jsonRequest(http.MethodPost, "/chat/message", `{"message":`), "owner-token")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("challenge required", func(t *testing.T) {
		svc := &fakeChatService{err: shared.NewChallengeRequiredError("Verification challenge required.", 42)}
		resp, body := do(t, newTestApp(svc), jsonRequest(http.MethodPost, "/chat/message", `{"message":"hi"}`), "owner-token")

		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.Equal(t, "42", resp.Header.Get(fiber.HeaderRetryAfter))
		d := data(t, body)
		assert.Equal(t, true, d["challenge_required"])
		assert.EqualValues(t, 42, d["retry_after"])
		assert.Equal(t, "Verification challenge required.", d["error"])
	})

	t.Run("suspended", func(t *testing.T) {
		svc := &fakeChatService{err: shared.NewSuspendedError()}
		resp, body := do(t, newTestApp(svc), jsonRequest(http.MethodPost, "/chat/message", `{"message":"hi"}`), "owner-token")

		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, shared.ContactSupportMessage, data(t, body)["error"])
	})
}

func TestGetConversationPassesPaging(t *testing.T) {
	svc := &fakeChatService{}
	resp, _ := do(t, newTestApp(svc), httptest.NewRequest(http.MethodGet, "/chat/conversation?page=2&page_size=5", nil), "owner-token")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, dto.PageQuery{Page: 2, PageSize: 5}, svc.page)
}

func multipartRequest(t *testing.T, name, contentType string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if name != "" {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
		header.Set("Content-Type", contentType)
		part, err := w.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/chat/attachments", &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	return req
}

func TestUploadAttachment(t *testing.T) {
	svc := &fakeChatService{}
	req := multipartRequest(t, "receipt.png", "image/png", []byte("png-bytes"), map[string]string{"challenge_token": "tok"})
	resp, body := do(t, newTestApp(svc), req, "owner-token")

	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "receipt.png", svc.upload.Name)
	assert.Equal(t, "image/png", svc.upload.ContentType)
	assert.EqualValues(t, len("png-bytes"), svc.upload.Size)
	assert.Equal(t, []byte("png-bytes"), svc.uploadBody)
	assert.Equal(t, "tok", svc.challengeToken)

	attachment, ok := data(t, body)["attachment"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "owner-1/1-receipt.png", attachment["path"])
}

func TestUploadAttachmentWithoutFile(t *testing.T) {
	req := multipartRequest(t, "", "", nil, map[string]string{"note": "x"})
	resp, body := do(t, newTestApp(&fakeChatService{}), req, "owner-token")

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "File is required.", data(t, body)["error"])
}

func TestAdminRoutesRequireSupport(t *testing.T) {
	resp, _ := do(t, newTestApp(&fakeChatService{}), httptest.NewRequest(http.MethodGet, "/admin/chats", nil), "owner-token")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAdminListConversations(t *testing.T) {
	svc := &fakeChatService{}
	resp, _ := do(t, newTestApp(svc), httptest.NewRequest(http.MethodGet, "/admin/chats?status=open&assigned_to=agent-9", nil), "agent-token")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "open", svc.listQuery.Status)
	assert.Equal(t, "agent-9", svc.listQuery.AssignedTo)
}

func TestAdminUpdateConversation(t *testing.T) {
	svc := &fakeChatService{}
	resp, body := do(t, newTestApp(svc), jsonRequest(http.MethodPatch, "/admin/chats", `{"id":"conv-1","status":"closed","assigned_to":""}`), "agent-token")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Conversation updated successfully", body["message"])
	assert.Equal(t, "conv-1", svc.update.ID)
	require.NotNil(t, svc.update.Status)
	assert.Equal(t, "closed", *svc.update.Status)
	require.NotNil(t, svc.update.AssignedTo)
	assert.Equal(t, "", *svc.update.AssignedTo)
}

func TestAdminMessagesAndReply(t *testing.T) {
	svc := &fakeChatService{}
	app := newTestApp(svc)

	resp, _ := do(t, app, httptest.NewRequest(http.MethodGet, "/admin/chats/conv-7/messages?page=3", nil), "agent-token")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "conv-7", svc.conversationID)
	assert.Equal(t, 3, svc.page.Page)

	resp, body := do(t, app, jsonRequest(http.MethodPost, "/admin/chats/conv-8/messages", `{"body":"on it"}`), "agent-token")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "conv-8", svc.conversationID)
	assert.Equal(t, "on it", svc.reply.Body)
	assert.Equal(t, "msg-2", data(t, body)["message_id"])
}

func TestAdminReplyNotFound(t *testing.T) {
	svc := &fakeChatService{err: shared.NewNotFoundError("Conversation not found.")}
	resp, body := do(t, newTestApp(svc), jsonRequest(http.MethodPost, "/admin/chats/missing/messages", `{"body":"hi"}`), "agent-token")

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Conversation not found.", body["message"])
}

func TestAdminAbuseState(t *testing.T) {
	svc := &fakeChatService{}
	resp, body := do(t, newTestApp(svc), httptest.NewRequest(http.MethodGet, "/admin/abuse/owner-5", nil), "agent-token")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "owner-5", svc.abuseUserID)
	assert.Equal(t, "owner-5", data(t, body)["user_id"])
}
