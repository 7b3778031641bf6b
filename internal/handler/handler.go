// Package handler holds the Echo HTTP handlers. Handlers parse and
// validate input, delegate to the injected services, and translate
// service errors into HTTP responses through one responder.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/flipsapp/flips-backend/internal/apperror"
	"github.com/flipsapp/flips-backend/internal/contacts"
	"github.com/flipsapp/flips-backend/internal/identity"
	"github.com/flipsapp/flips-backend/internal/krypto"
	"github.com/flipsapp/flips-backend/internal/model"
	"github.com/flipsapp/flips-backend/internal/verification"
	"github.com/flipsapp/flips-backend/pkg/logger"
	"github.com/flipsapp/flips-backend/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// DeviceStore is the device persistence the handlers touch directly
type DeviceStore interface {
	FindByID(ctx context.Context, id uint) (*model.Device, error)
	Create(ctx context.Context, device *model.Device) error
}

// Handler bundles the injected services behind the HTTP surface
type Handler struct {
	devices  DeviceStore
	identity *identity.Service
	contacts *contacts.Matcher
	verifier *verification.Verifier
	crypto   *krypto.Krypto
}

// New creates the handler set
func New(devices DeviceStore, identitySvc *identity.Service, matcher *contacts.Matcher, verifier *verification.Verifier, crypto *krypto.Krypto) *Handler {
	return &Handler{
		devices:  devices,
		identity: identitySvc,
		contacts: matcher,
		verifier: verifier,
		crypto:   crypto,
	}
}

// respondError maps service errors onto HTTP responses
func respondError(c echo.Context, err error) error {
	log := logger.FromEcho(c)

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		prometheus.RecordError(appErr.Type.String())
		if appErr.Type == apperror.StorageError {
			log.Error("Request failed", zap.Error(err))
		} else {
			log.Info("Request rejected", zap.String("reason", appErr.Message))
		}
		return c.JSON(appErr.StatusCode(), echo.Map{"error": appErr.Message})
	}

	prometheus.RecordError("internal")
	log.Error("Unhandled error", zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
