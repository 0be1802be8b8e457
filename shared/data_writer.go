package shared

import (
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

var JSONAPI = sonic.Config{
	UseNumber:            true,
	EscapeHTML:           false,
	SortMapKeys:          false,
	CompactMarshaler:     true,
	NoQuoteTextMarshaler: true,
	NoNullSliceOrMap:     true,
}.Froze()

func ResponseJSON(c *fiber.Ctx, httpCode int, message string, data interface{}) error {
	return c.Status(httpCode).JSON(Response{
		Code:    httpCode,
		Message: message,
		Data:    data,
	})
}

func ResponseOK(c *fiber.Ctx, data interface{}) error {
	return ResponseJSON(c, fiber.StatusOK, "Success", data)
}

// ResponseError renders err in the shared envelope. Unknown errors become a bare 500.
func ResponseError(c *fiber.Ctx, err error) error {
	if appErr, ok := GetAppError(err); ok {
		if appErr.RetryAfter > 0 {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(appErr.RetryAfter))
		}
		if appErr.StatusCode >= fiber.StatusInternalServerError {
			log.WithError(err).WithField("path", c.Path()).Error("request failed")
			return ResponseJSON(c, appErr.StatusCode, appErr.Message, nil)
		}
		return ResponseJSON(c, appErr.StatusCode, appErr.Message, appErr.Body())
	}

	if fiberErr, ok := err.(*fiber.Error); ok {
		return ResponseJSON(c, fiberErr.Code, fiberErr.Message, nil)
	}

	log.WithError(err).WithField("path", c.Path()).Error("unhandled error")
	return ResponseJSON(c, fiber.StatusInternalServerError, "Internal Server Error", nil)
}
