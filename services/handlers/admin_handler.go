package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/koolaai/support_api/dto"
	"github.com/koolaai/support_api/shared"
)

type AdminHandler struct {
	supportSvc SupportServiceInterface
}

func NewAdminHandler(supportSvc SupportServiceInterface) *AdminHandler {
	return &AdminHandler{supportSvc: supportSvc}
}

// @Summary List conversations (Support)
// @Description List conversations by most recent activity
// @Tags admin
// @Produce json
// @Security Bearer
// @Param Authorization header string true "Support Bearer Token" default(Bearer <support_token>)
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Items per page" default(20)
// @Param status query string false "open or closed"
// @Param assigned_to query string false "Assignee user ID"
// @Success 200 {object} shared.Response{data=dto.ConversationListResponse}
// @Router /admin/chats [get]
func (h *AdminHandler) ListConversations(c *fiber.Ctx) error {
	var q dto.ConversationListQuery
	if err := c.QueryParser(&q); err != nil {
		return shared.NewBadRequestError(err, "Invalid query parameters")
	}

	resp, err := h.supportSvc.ListConversations(c.UserContext(), q)
	if err != nil {
		return err
	}

	return shared.ResponseOK(c, resp)
}

// @Summary Update conversation (Support)
// @Description Change status or assignment. An empty assigned_to clears the assignee.
// @Tags admin
// @Accept json
// @Produce json
// @Security Bearer
// @Param Authorization header string true "Support Bearer Token" default(Bearer <support_token>)
// @Param updateRequest body dto.UpdateConversationRequest true "Patch"
// @Success 200 {object} shared.Response{data=model.Conversation}
// @Failure 404 {object} shared.Response
// @Router /admin/chats [patch]
func (h *AdminHandler) UpdateConversation(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}

	var req dto.UpdateConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request payload.")
	}

	conv, err := h.supportSvc.UpdateConversation(c.UserContext(), identity, req)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Conversation updated successfully", conv)
}

// @Summary Get conversation messages (Support)
// @Description Page through one conversation. Marks customer messages read.
// @Tags admin
// @Produce json
// @Security Bearer
// @Param Authorization header string true "Support Bearer Token" default(Bearer <support_token>)
// @Param conversationId path string true "Conversation ID"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Messages per page" default(30)
// @Success 200 {object} shared.Response{data=dto.ConversationPageResponse}
// @Failure 404 {object} shared.Response
// @Router /admin/chats/{conversationId}/messages [get]
func (h *AdminHandler) GetMessages(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}

	q, err := pageQuery(c)
	if err != nil {
		return err
	}

	resp, err := h.supportSvc.OperatorMessages(c.UserContext(), identity, c.Params("conversationId"), q)
	if err != nil {
		return err
	}

	return shared.ResponseOK(c, resp)
}

// @Summary Reply to conversation (Support)
// @Tags admin
// @Accept json
// @Produce json
// @Security Bearer
// @Param Authorization header string true "Support Bearer Token" default(Bearer <support_token>)
// @Param conversationId path string true "Conversation ID"
// @Param reply body dto.OperatorReplyRequest true "Reply"
// @Success 200 {object} shared.Response{data=dto.ChatMessageResponse}
// @Failure 404 {object} shared.Response
// @Failure 429 {object} shared.Response
// @Router /admin/chats/{conversationId}/messages [post]
func (h *AdminHandler) Reply(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}

	var req dto.OperatorReplyRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request payload.")
	}

	resp, err := h.supportSvc.Reply(c.UserContext(), identity, c.IP(), c.Params("conversationId"), req)
	if err != nil {
		return err
	}

	return shared.ResponseOK(c, resp)
}

// @Summary Abuse state (Support)
// @Description Escalation state and remaining chat quota of one user
// @Tags admin
// @Produce json
// @Security Bearer
// @Param Authorization header string true "Support Bearer Token" default(Bearer <support_token>)
// @Param userId path string true "User ID"
// @Success 200 {object} shared.Response{data=dto.AbuseStateResponse}
// @Router /admin/abuse/{userId} [get]
func (h *AdminHandler) AbuseState(c *fiber.Ctx) error {
	resp, err := h.supportSvc.AbuseState(c.UserContext(), c.Params("userId"))
	if err != nil {
		return err
	}

	return shared.ResponseOK(c, resp)
}
