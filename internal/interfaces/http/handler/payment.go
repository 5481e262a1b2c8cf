package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	invoiceapp "github.com/invoiceledger/backend/internal/application/invoicing"
	"github.com/invoiceledger/backend/internal/domain/shared"
	"github.com/invoiceledger/backend/internal/infrastructure/logger"
	"github.com/invoiceledger/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

const (
	defaultConflictRetries = 3
	defaultIdempotencyTTL  = 24 * time.Hour
	maxIdempotencyKeyLen   = 255
)

// PaymentHandlerConfig configures PaymentHandler
type PaymentHandlerConfig struct {
	// ConflictRetries is how many times a payment is retried after a concurrent modification
	ConflictRetries int
	// Idempotency is optional; without it the Idempotency-Key header is ignored
	Idempotency    shared.IdempotencyStore
	IdempotencyTTL time.Duration
}

// PaymentHandler serves the payment recording endpoint
type PaymentHandler struct {
	BaseHandler
	recorder *invoiceapp.PaymentRecorder
	cfg      PaymentHandlerConfig
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(recorder *invoiceapp.PaymentRecorder, cfg PaymentHandlerConfig) *PaymentHandler {
	if cfg.ConflictRetries < 1 {
		cfg.ConflictRetries = defaultConflictRetries
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = defaultIdempotencyTTL
	}
	return &PaymentHandler{recorder: recorder, cfg: cfg}
}

// Record applies a payment to an invoice.
//
//	POST /api/v1/invoices/:id/payments
//
// A repeated Idempotency-Key for the same invoice is rejected with DUPLICATE_REQUEST once its
// payment was recorded, and with REQUEST_IN_PROGRESS while the first request is still running.
// The key is only consumed by a payment that was recorded.
func (h *PaymentHandler) Record(c *gin.Context) {
	tenantID, invoiceID, ok := h.scope(c)
	if !ok {
		return
	}

	var req invoiceapp.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	ctx := c.Request.Context()
	key := c.GetHeader(middleware.IdempotencyKeyHeader)
	if len(key) > maxIdempotencyKeyLen {
		h.BadRequest(c, "Idempotency-Key is too long")
		return
	}

	claim, err := h.claim(ctx, tenantID, invoiceID, key)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := invoiceapp.RetryOnConflict(ctx, h.cfg.ConflictRetries,
		func(ctx context.Context) (*invoiceapp.RecordPaymentResult, error) {
			return h.recorder.RecordPayment(ctx, tenantID, invoiceID, req)
		})
	if err != nil {
		claim.release()
		h.HandleError(c, err)
		return
	}
	claim.complete()
	h.Created(c, result)
}

// keyClaim holds an Idempotency-Key for the duration of one request
type keyClaim struct {
	release  func()
	complete func()
}

var noClaim = keyClaim{release: func() {}, complete: func() {}}

// claim takes the idempotency key before recording. A taken key yields ErrDuplicateRequest when
// its payment was recorded and ErrRequestInProgress otherwise. Store failures do not block the
// payment; the request then proceeds without deduplication.
func (h *PaymentHandler) claim(ctx context.Context, tenantID, invoiceID uuid.UUID, key string) (keyClaim, error) {
	if key == "" || h.cfg.Idempotency == nil {
		return noClaim, nil
	}

	store := h.cfg.Idempotency
	scoped := "payment:" + tenantID.String() + ":" + invoiceID.String() + ":" + key
	recordedKey := scoped + ":recorded"
	log := logger.L(ctx).With(zap.String("invoice_id", invoiceID.String()))

	marked, err := store.MarkProcessed(ctx, scoped, h.cfg.IdempotencyTTL)
	if err != nil {
		log.Warn("Idempotency store unavailable, recording without deduplication", zap.Error(err))
		return noClaim, nil
	}
	if !marked {
		recorded, err := store.IsProcessed(ctx, recordedKey)
		if err != nil {
			log.Warn("Failed to read idempotency key state", zap.Error(err))
		}
		if recorded {
			return noClaim, shared.ErrDuplicateRequest
		}
		return noClaim, shared.ErrRequestInProgress
	}

	detached := context.WithoutCancel(ctx)
	return keyClaim{
		release: func() {
			if err := store.Release(detached, scoped); err != nil {
				log.Warn("Failed to release idempotency key", zap.Error(err))
			}
		},
		complete: func() {
			if _, err := store.MarkProcessed(detached, recordedKey, h.cfg.IdempotencyTTL); err != nil {
				log.Warn("Failed to mark idempotency key as recorded", zap.Error(err))
			}
		},
	}, nil
}

