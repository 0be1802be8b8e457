package dto

import (
	"io"

	"github.com/koolaai/support_api/model"
)

// AttachmentUpload is one multipart file handed to the uploader.
type AttachmentUpload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

type AttachmentUploadResponse struct {
	OK         bool              `json:"ok" example:"true"`
	Attachment *model.Attachment `json:"attachment"`
}
