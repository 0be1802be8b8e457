package ingest

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/koolaai/support_api/dto"
	"github.com/koolaai/support_api/model"
	"github.com/koolaai/support_api/shared"
)

var likelyURL = regexp.MustCompile(`(?i)(https?://|www\.|[a-z0-9-]+\.[a-z]{2,})`)

// LooksLikeURL reports whether body contains anything resembling a link or a bare domain.
func LooksLikeURL(body string) bool {
	return likelyURL.MatchString(body)
}

// SanitizeOwnerBody collapses every whitespace run to one space and trims the ends.
func SanitizeOwnerBody(body string) string {
	return strings.Join(strings.Fields(body), " ")
}

func validateBody(side shared.Side, body string) (string, error) {
	limit := shared.OperatorMessageMaxLength
	if side == shared.SideOwner {
		body = SanitizeOwnerBody(body)
		limit = shared.OwnerMessageMaxLength
	} else {
		body = strings.TrimSpace(body)
	}

	if body == "" {
		return "", shared.NewValidationError("Message is required.", nil)
	}
	if utf8.RuneCountInString(body) > limit {
		return "", shared.NewValidationError("Message is too long.", map[string]int{"max_length": limit})
	}
	return body, nil
}

// ValidateAttachments checks the count, required fields, size and type allow-list.
func ValidateAttachments(attachments []model.Attachment) error {
	if len(attachments) > shared.MaxAttachments {
		return shared.NewValidationError("Too many attachments.", map[string]int{"max_attachments": shared.MaxAttachments})
	}
	for i := range attachments {
		if err := dto.GetValidator().Struct(attachments[i]); err != nil {
			return dto.AsAppError(err)
		}
	}
	return nil
}
