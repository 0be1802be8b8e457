package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/koolaai/support_api/dto"
	"github.com/koolaai/support_api/shared"
	log "github.com/sirupsen/logrus"
)

const challengeTokenHeader = "X-Challenge-Token"

type ChatHandler struct {
	chatSvc ChatServiceInterface
}

func NewChatHandler(chatSvc ChatServiceInterface) *ChatHandler {
	return &ChatHandler{chatSvc: chatSvc}
}

// @Summary Send chat message
// @Description Post a message to the caller's support conversation, opening one if needed
// @Tags chat
// @Accept json
// @Produce json
// @Security Bearer
// @Param Authorization header string true "Bearer Token" default(Bearer <token>)
// @Param message body dto.ChatMessageRequest true "Message"
// @Success 200 {object} shared.Response{data=dto.ChatMessageResponse}
// @Failure 400 {object} shared.Response
// @Failure 403 {object} shared.Response
// @Failure 429 {object} shared.Response
// @Router /chat/message [post]
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}

	var req dto.ChatMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request payload.")
	}
	if req.ChallengeToken == "" {
		req.ChallengeToken = c.Get(challengeTokenHeader)
	}

	resp, err := h.chatSvc.SendOwnerMessage(c.UserContext(), identity, c.IP(), req)
	if err != nil {
		return err
	}

	return shared.ResponseOK(c, resp)
}

// @Summary Get conversation
// @Description Page through the caller's most recent conversation, newest page first. Marks support replies read.
// @Tags chat
// @Produce json
// @Security Bearer
// @Param Authorization header string true "Bearer Token" default(Bearer <token>)
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Messages per page" default(20)
// @Success 200 {object} shared.Response{data=dto.ConversationPageResponse}
// @Router /chat/conversation [get]
func (h *ChatHandler) GetConversation(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}

	q, err := pageQuery(c)
	if err != nil {
		return err
	}

	resp, err := h.chatSvc.OwnerConversation(c.UserContext(), identity, q)
	if err != nil {
		return err
	}

	return shared.ResponseOK(c, resp)
}

// @Summary Upload chat attachment
// @Description Upload one file (max 5MB) and get back an attachment descriptor with a 7 day signed URL
// @Tags chat
// @Accept multipart/form-data
// @Produce json
// @Security Bearer
// @Param Authorization header string true "Bearer Token" default(Bearer <token>)
// @Param file formData file true "Attachment (png, jpeg, webp, txt, json, zip)"
// @Param challenge_token formData string false "Challenge token when verification is required"
// @Success 200 {object} shared.Response{data=dto.AttachmentUploadResponse}
// @Failure 400 {object} shared.Response
// @Failure 429 {object} shared.Response
// @Router /chat/attachments [post]
func (h *ChatHandler) UploadAttachment(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}

	file, err := c.FormFile("file")
	if err != nil {
		return shared.NewValidationError("File is required.", nil)
	}

	src, err := file.Open()
	if err != nil {
		return shared.NewBadRequestError(err, "Failed to read file.")
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.WithError(err).Debug("failed to close multipart file")
		}
	}()

	token := c.FormValue("challenge_token")
	if token == "" {
		token = c.Get(challengeTokenHeader)
	}

	attachment, err := h.chatSvc.UploadAttachment(c.UserContext(), identity, c.IP(), token, dto.AttachmentUpload{
		Name:        file.Filename,
		ContentType: file.Header.Get(fiber.HeaderContentType),
		Size:        file.Size,
		Body:        src,
	})
	if err != nil {
		return err
	}

	return shared.ResponseOK(c, dto.AttachmentUploadResponse{OK: true, Attachment: attachment})
}
