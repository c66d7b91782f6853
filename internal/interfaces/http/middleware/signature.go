package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/erp/invoice-relay/internal/interfaces/http/dto"
)

const (
	// HeaderWebhookSignature carries "sha256=<hex HMAC of the raw body>"
	HeaderWebhookSignature = "X-Webhook-Signature"
	// HeaderWebhookDelivery carries the storefront delivery id
	HeaderWebhookDelivery = "X-Webhook-Delivery"

	signaturePrefix = "sha256="
)

// SignBody returns the signature header value for body
func SignBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// WebhookSignature rejects requests whose body does not match the
// HMAC-SHA256 signature header. The body is restored for the handler.
func WebhookSignature(secret string) gin.HandlerFunc {
	key := []byte(secret)

	return func(c *gin.Context) {
		got := strings.TrimSpace(c.GetHeader(HeaderWebhookSignature))
		if !strings.HasPrefix(got, signaturePrefix) {
			abortSignature(c, "missing signature")
			return
		}
		sum, err := hex.DecodeString(strings.TrimPrefix(got, signaturePrefix))
		if err != nil {
			abortSignature(c, "malformed signature")
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeBadRequest, "unreadable body", GetRequestID(c)))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		mac := hmac.New(sha256.New, key)
		mac.Write(body)
		if !hmac.Equal(sum, mac.Sum(nil)) {
			abortSignature(c, "signature mismatch")
			return
		}
		c.Next()
	}
}

func abortSignature(c *gin.Context, reason string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeSignature, "invalid webhook signature: "+reason, GetRequestID(c)))
}
