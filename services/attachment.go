package services

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/koolaai/support_api/dto"
	"github.com/koolaai/support_api/model"
	"github.com/koolaai/support_api/services/abuse"
	"github.com/koolaai/support_api/services/ratelimit"
	"github.com/koolaai/support_api/shared"
	log "github.com/sirupsen/logrus"
)

const attachmentURLExpiry = 7 * 24 * time.Hour

// ObjectStore is the blob storage the attachment uploader writes to.
type ObjectStore interface {
	PutObject(ctx context.Context, objectName string, reader io.Reader, objectSize int64, contentType string) error
	PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
	RemoveObject(ctx context.Context, objectName string) error
}

// UploadGuard gates an upload behind a challenge once its durable limit is hit.
type UploadGuard interface {
	Guard(ctx context.Context, a abuse.Attempt, scope string, rules []ratelimit.Rule) error
}

var UploadRules = []ratelimit.Rule{
	{Bucket: "chat_upload_user_minute", Limit: 10, Window: time.Minute},
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

func SanitizeFilename(name string) string {
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}

func storageError(err error, message string) *shared.AppError {
	appErr := shared.NewUnavailableError(message)
	appErr.Err = err
	return appErr
}

type AttachmentUploader struct {
	store ObjectStore
	guard UploadGuard
	now   func() time.Time
}

func NewAttachmentUploader(store ObjectStore, guard UploadGuard) *AttachmentUploader {
	return &AttachmentUploader{store: store, guard: guard, now: time.Now}
}

// Upload stores one owner attachment at <userID>/<unixms>-<name> and returns
// a descriptor carrying a 7-day presigned URL.
func (u *AttachmentUploader) Upload(ctx context.Context, identity *shared.Identity, a abuse.Attempt, up dto.AttachmentUpload) (*model.Attachment, error) {
	if identity.Role != shared.RoleOwner {
		return nil, shared.NewPermissionError("Only customers can upload chat attachments.")
	}
	if !identity.EmailVerified {
		return nil, shared.NewPermissionError("Verify your email before uploading files.")
	}
	if up.Body == nil || up.Name == "" {
		return nil, shared.NewValidationError("File is required.", nil)
	}
	if up.Size > shared.MaxAttachmentSize {
		return nil, shared.NewValidationError("File size exceeds 5MB limit.", nil)
	}
	if !shared.AllowedAttachmentTypes[up.ContentType] {
		return nil, shared.NewValidationError("Unsupported file type.", nil)
	}

	if err := u.guard.Guard(ctx, a, "upload:user:"+identity.UserID, UploadRules); err != nil {
		return nil, err
	}

	path := fmt.Sprintf("%s/%d-%s", identity.UserID, u.now().UnixMilli(), SanitizeFilename(up.Name))
	if err := u.store.PutObject(ctx, path, up.Body, up.Size, up.ContentType); err != nil {
		log.WithError(err).WithField("path", path).Error("attachment upload failed")
		return nil, storageError(err, "Failed to upload file.")
	}

	url, err := u.store.PresignedURL(ctx, path, attachmentURLExpiry)
	if err != nil || url == "" {
		if rmErr := u.store.RemoveObject(ctx, path); rmErr != nil {
			log.WithError(rmErr).WithField("path", path).Warn("failed to remove unsigned attachment")
		}
		return nil, storageError(err, "Failed to sign upload URL.")
	}

	return &model.Attachment{
		Path: path,
		URL:  url,
		Type: up.ContentType,
		Size: up.Size,
		Name: up.Name,
	}, nil
}
