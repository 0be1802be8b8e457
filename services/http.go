package services

import (
	"fmt"
	"os"
	"strconv"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	_ "github.com/koolaai/support_api/docs"
	"github.com/koolaai/support_api/middleware"
	"github.com/koolaai/support_api/services/handlers"
	"github.com/koolaai/support_api/services/ratelimit"
	"github.com/koolaai/support_api/shared"
	log "github.com/sirupsen/logrus"
)

// Gateway limits are per caller address and process-local.
var (
	gatewayMessageRule    = ratelimit.Rule{Bucket: "gateway_chat_message", Limit: 120, Window: time.Minute}
	gatewayAttachmentRule = ratelimit.Rule{Bucket: "gateway_chat_attachments", Limit: 60, Window: time.Minute}
	gatewayAdminRule      = ratelimit.Rule{Bucket: "gateway_admin", Limit: 600, Window: time.Minute}

	// Durable, keyed by the authenticated operator.
	operatorReplyRule = ratelimit.Rule{Bucket: "operator_reply_user_minute", Limit: 60, Window: time.Minute}
)

type HttpService struct {
	appContext.DefaultService

	authSvc *AuthMiddleware
	rlSvc   *RateLimitService
	chatSvc *ChatService

	port           int
	proxyHeader    string
	trustedProxies []string
	app            *fiber.App
}

const HTTP_SVC = "http_svc"

func (svc HttpService) Id() string {
	return HTTP_SVC
}

func (svc *HttpService) Configure(ctx *appContext.Context) error {
	if port := os.Getenv("HTTP_PORT"); port != "" {
		var err error
		if svc.port, err = strconv.Atoi(port); err != nil {
			return err
		}
	} else {
		svc.port = 8000
	}

	svc.proxyHeader = os.Getenv("PROXY_HEADER")
	svc.trustedProxies = middleware.ParseProxies(os.Getenv("TRUSTED_PROXIES"))

	return svc.DefaultService.Configure(ctx)
}

func (svc *HttpService) Start() error {
	svc.authSvc = svc.Service(AUTH_MIDDLEWARE_SVC).(*AuthMiddleware)
	svc.rlSvc = svc.Service(RATE_LIMIT_SVC).(*RateLimitService)
	svc.chatSvc = svc.Service(CHAT_SVC).(*ChatService)

	svc.app = svc.newApp()

	log.WithField("port", svc.port).Info("HTTP server listening")
	return svc.app.Listen(fmt.Sprintf(":%v", svc.port))
}

func (svc *HttpService) Shutdown() {
	if svc.app != nil {
		_ = svc.app.Shutdown()
	}
}

func (svc *HttpService) newApp() *fiber.App {
	app := fiber.New(middleware.TrustProxies(fiber.Config{
		JSONEncoder:           shared.JSONAPI.Marshal,
		JSONDecoder:           shared.JSONAPI.Unmarshal,
		ErrorHandler:          shared.ResponseError,
		BodyLimit:             shared.MaxAttachmentSize + 1024*1024,
		DisableStartupMessage: true,
	}, svc.proxyHeader, svc.trustedProxies))

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{ContextKey: shared.RequestID}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Challenge-Token",
	}))
	if os.Getenv("LOG_LEVEL") == "TRACE" {
		app.Use(logger.New())
	}
	app.Use(MonitoringMiddleware())

	//Validation endpoints
	app.Get("/ping", svc.ping)
	app.Get("/swagger/*", swagger.HandlerDefault)

	chat := handlers.NewChatHandler(svc.chatSvc)
	admin := handlers.NewAdminHandler(svc.chatSvc)

	authed := func(hs ...fiber.Handler) []fiber.Handler {
		return append([]fiber.Handler{svc.authSvc.RequiredAuth(), svc.authSvc.SyncProfile()}, hs...)
	}
	limited := func(rule ratelimit.Rule, hs ...fiber.Handler) []fiber.Handler {
		return append([]fiber.Handler{svc.rlSvc.IPRateLimit(rule)}, authed(hs...)...)
	}

	app.Post("/chat/message", limited(gatewayMessageRule, chat.SendMessage)...)
	app.Get("/chat/conversation", authed(chat.GetConversation)...)
	app.Post("/chat/attachments", limited(gatewayAttachmentRule, chat.UploadAttachment)...)

	adminGroup := app.Group("/admin", limited(gatewayAdminRule, svc.authSvc.RequireSupport())...)
	adminGroup.Get("/chats", admin.ListConversations)
	adminGroup.Patch("/chats", admin.UpdateConversation)
	adminGroup.Get("/chats/:conversationId/messages", admin.GetMessages)
	adminGroup.Post("/chats/:conversationId/messages", svc.rlSvc.UserBasedRateLimit(operatorReplyRule), admin.Reply)
	adminGroup.Get("/abuse/:userId", admin.AbuseState)

	app.Use(func(c *fiber.Ctx) error {
		return shared.NewNotFoundError("page not found")
	})

	return app
}

// @Summary Ping
// @Description This endpoint checks the health of the service
// @Tags health
// @Accept  json
// @Produce json
// @Success 200 {object} shared.Response{data=string}
// @Router /ping [get]
func (svc *HttpService) ping(c *fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, "max-age=10")

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", "pong")
}
