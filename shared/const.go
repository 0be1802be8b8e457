package shared

const (
	UserID        = "user_id"
	UserRole      = "user_role"
	EmailVerified = "email_verified"
	RequestID     = "request_id"

	MaxAttachmentSize = 5 * 1024 * 1024
	MaxAttachments    = 5

	OwnerMessageMaxLength    = 1200
	OperatorMessageMaxLength = 4000
	MessagePreviewLength     = 160

	ChatMessageCooldownSeconds = 3
	AbuseSuspensionThreshold   = 5

	EventChatRateLimit = "chat_rate_limit"
)

var AllowedAttachmentTypes = map[string]bool{
	"image/png":                    true,
	"image/jpeg":                   true,
	"image/webp":                   true,
	"text/plain":                   true,
	"application/json":             true,
	"application/zip":              true,
	"application/x-zip-compressed": true,
}
