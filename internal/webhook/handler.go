package webhook

import (
	"errors"
	"io"
	"net/http"

	"frontdesk_backend/platform/config"
	"frontdesk_backend/platform/httpkit"
	"frontdesk_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

const maxBodyBytes = 1 << 20

// Handler terminates provider webhook deliveries.
type Handler struct {
	service *Service
	secret  string
	log     *logger.Logger
}

func NewHandler(service *Service, cfg config.WebhookConfig, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		secret:  cfg.GetTelephonyWebhookSecret(),
		log:     log,
	}
}

// HandleTelephonyWebhook verifies and ingests one provider delivery.
// POST /api/v1/webhooks/telephony
//
// Responses steer the provider's retry behavior: 403 for bad signatures,
// 200 for anything we will never be able to process (unknown types,
// unattributable calls), 500 only for transient failures worth redelivering.
func (h *Handler) HandleTelephonyWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "unable to read request body", nil)
		return
	}

	if !ValidSignature(h.secret, body, c.GetHeader(SignatureHeader)) {
		h.log.WebhookRejected("invalid signature", c.ClientIP())
		httpkit.Error(c, http.StatusForbidden, "invalid signature", nil)
		return
	}

	if err := h.service.Ingest(c.Request.Context(), body); err != nil {
		var unknownType *UnknownEventTypeError
		var unattributable *UnattributableEventError

		switch {
		case errors.As(err, &unknownType):
			h.log.Warn("webhook event type ignored", "event_type", unknownType.EventType)
			c.JSON(http.StatusOK, gin.H{"received": true, "processed": false})
		case errors.As(err, &unattributable):
			h.log.WebhookRejected("no tenant match", c.ClientIP())
			c.JSON(http.StatusOK, gin.H{"received": true, "processed": false})
		case errors.Is(err, errMissingCallID), errors.Is(err, errMalformedPayload):
			httpkit.Error(c, http.StatusBadRequest, "invalid payload", nil)
		default:
			// Transient failure: let the provider redeliver.
			httpkit.Error(c, http.StatusInternalServerError, "ingestion failed", nil)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true, "processed": true})
}
