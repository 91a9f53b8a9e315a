package ingest

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"hookrelay/internal/broker"
	"hookrelay/internal/logger"
	"hookrelay/pkg/errors"
	"hookrelay/pkg/logging"
	"hookrelay/pkg/metrics"
	"hookrelay/pkg/models"
)

const maxBodyBytes = 1 << 20

// SourceGate decides whether a source currently accepts webhooks.
type SourceGate interface {
	Enabled(name string) bool
}

type Handler struct {
	producer    broker.Producer
	topic       string
	gate        SourceGate
	verifyToken string
	log         logger.Logger
}

func NewHandler(producer broker.Producer, topic string, gate SourceGate, verifyToken string, log logger.Logger) *Handler {
	return &Handler{
		producer:    producer,
		topic:       topic,
		gate:        gate,
		verifyToken: verifyToken,
		log:         log,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.POST("/webhook/:source", h.HandleWebhook)
	router.GET("/webhook/:source", h.HandleChallenge)
}

// MethodNotAllowed is installed as the router's NoMethod handler.
func (h *Handler) MethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, gin.H{
		"error":      "method not allowed",
		"error_code": "METHOD_NOT_ALLOWED",
	})
}

// HandleWebhook accepts a raw provider payload and enqueues it for the
// validation stage. The raw body rides along for signature verification.
//
// @Summary  Ingest a webhook
// @Param    source  path  string  true  "source name"
// @Accept   json
// @Produce  json
// @Success  200  {object}  map[string]interface{}
// @Failure  400  {object}  map[string]interface{}
// @Router   /webhook/{source} [post]
func (h *Handler) HandleWebhook(c *gin.Context) {
	ctx := c.Request.Context()

	source := strings.TrimSpace(c.Param("source"))
	if source == "" {
		h.reject(c, errors.ErrClientInput.WithMessage("source parameter is required"), "missing_source")
		return
	}

	if h.gate != nil && !h.gate.Enabled(source) {
		metrics.WebhooksReceivedTotal.WithLabelValues(source, "disabled").Inc()
		c.JSON(http.StatusNotFound, errors.ToErrorResponse(errors.ErrNotFound.WithMessage("unknown webhook source")))
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		h.reject(c, errors.ErrClientInput.WithMessage("failed to read request body").WithCause(err), "body_read_error")
		return
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		h.reject(c, errors.ErrClientInput.WithMessage("request body must be a JSON object").WithCause(err), "malformed_json")
		return
	}

	envelope := models.WebhookEnvelope{
		ID:         uuid.NewString(),
		Source:     source,
		Payload:    payload,
		RawBody:    body,
		Headers:    flattenHeaders(c.Request.Header),
		ReceivedAt: time.Now().UTC(),
		Metadata: models.Metadata{
			TraceID: logging.GetTraceID(ctx),
		},
	}

	ctx = logging.WithWebhookID(logging.WithSource(ctx, source), envelope.ID)

	if err := h.producer.Publish(ctx, h.topic, envelope); err != nil {
		metrics.WebhooksReceivedTotal.WithLabelValues(source, "publish_error").Inc()
		h.log.ErrorwCtx(ctx, "failed to enqueue webhook",
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, errors.ToErrorResponse(errors.ErrInternal))
		return
	}

	metrics.WebhooksReceivedTotal.WithLabelValues(source, "accepted").Inc()
	h.log.InfowCtx(ctx, "webhook accepted")

	c.JSON(http.StatusOK, gin.H{
		"status":    "received",
		"source":    source,
		"timestamp": envelope.ReceivedAt.Format(time.RFC3339),
	})
}

// HandleChallenge answers provider endpoint-verification probes. Facebook and
// Meta gate the echo behind a verify token; everyone else gets the challenge
// parameter echoed verbatim.
func (h *Handler) HandleChallenge(c *gin.Context) {
	source := c.Param("source")

	if source == "facebook" || source == "meta" {
		mode := c.Query("hub.mode")
		token := c.Query("hub.verify_token")
		challenge := c.Query("hub.challenge")

		if mode == "subscribe" && h.verifyToken != "" && token == h.verifyToken {
			metrics.ChallengesTotal.WithLabelValues(source, "verified").Inc()
			c.String(http.StatusOK, challenge)
			return
		}
	}

	if challenge := c.Query("challenge"); challenge != "" {
		metrics.ChallengesTotal.WithLabelValues(source, "echoed").Inc()
		c.String(http.StatusOK, challenge)
		return
	}

	metrics.ChallengesTotal.WithLabelValues(source, "rejected").Inc()
	h.MethodNotAllowed(c)
}

func (h *Handler) reject(c *gin.Context, err *errors.Error, reason string) {
	metrics.WebhooksReceivedTotal.WithLabelValues(c.Param("source"), reason).Inc()
	c.JSON(err.Status, errors.ToErrorResponse(err))
}

// flattenHeaders keeps the first value per header under a lowercase key,
// matching what the signature verifiers expect.
func flattenHeaders(header http.Header) map[string]string {
	flat := make(map[string]string, len(header))
	for name, values := range header {
		if len(values) > 0 {
			flat[strings.ToLower(name)] = values[0]
		}
	}
	return flat
}
