package handler

import (
	"net/http"
	"strconv"

	"github.com/flipsapp/flips-backend/internal/apperror"
	"github.com/flipsapp/flips-backend/internal/model"
	"github.com/flipsapp/flips-backend/internal/verification"
	"github.com/flipsapp/flips-backend/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// CreateDevice registers a device for a user and dispatches the first
// verification code
func (h *Handler) CreateDevice(c echo.Context) error {
	log := logger.FromEcho(c)

	userID, err := parseID(c.Param("parentid"))
	if err != nil {
		return respondError(c, apperror.NewValidationError("missing parameter [User Id]"))
	}

	var req struct {
		Platform    string `json:"platform" form:"platform"`
		UUID        string `json:"uuid" form:"uuid"`
		PhoneNumber string `json:"phoneNumber" form:"phoneNumber"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperror.NewValidationError("invalid request"))
	}
	if req.Platform == "" {
		return respondError(c, apperror.NewValidationError("missing parameter [platform]"))
	}

	device := &model.Device{
		UserID:      userID,
		Platform:    req.Platform,
		UUID:        req.UUID,
		PhoneNumber: req.PhoneNumber,
	}
	if err := h.devices.Create(c.Request().Context(), device); err != nil {
		return respondError(c, err)
	}

	if err := h.verifier.IssueCode(c.Request().Context(), device, verification.ReasonCreate); err != nil {
		return respondError(c, err)
	}

	log.Info("Device registered",
		zap.Uint("device_id", device.ID), zap.Uint("user_id", userID))
	return c.JSON(http.StatusCreated, device)
}

// FindDevice returns a device by id
func (h *Handler) FindDevice(c echo.Context) error {
	deviceID, err := parseID(c.Param("id"))
	if err != nil {
		return respondError(c, apperror.NewValidationError("missing parameter [id]"))
	}

	device, err := h.devices.FindByID(c.Request().Context(), deviceID)
	if err != nil {
		return respondError(c, err)
	}

	if ownerErr := h.checkDeviceOwner(c, device); ownerErr != nil {
		return respondError(c, ownerErr)
	}

	device.User = h.crypto.DecryptUser(device.User)
	return c.JSON(http.StatusOK, device)
}

// VerifyDevice submits a verification code for a device
func (h *Handler) VerifyDevice(c echo.Context) error {
	log := logger.FromEcho(c)

	deviceID, err := parseID(c.Param("id"))
	if err != nil {
		return respondError(c, apperror.NewValidationError("missing parameter [Device Id]"))
	}

	var req struct {
		VerificationCode string `json:"verification_code" form:"verification_code"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperror.NewValidationError("invalid request"))
	}
	if req.VerificationCode == "" {
		return respondError(c, apperror.NewValidationError("missing parameter [Verification Code]"))
	}

	device, err := h.devices.FindByID(c.Request().Context(), deviceID)
	if err != nil {
		return respondError(c, err)
	}

	if ownerErr := h.checkDeviceOwner(c, device); ownerErr != nil {
		return respondError(c, ownerErr)
	}

	if err := h.verifier.SubmitCode(c.Request().Context(), device, req.VerificationCode); err != nil {
		return respondError(c, err)
	}

	log.Info("Device verified", zap.Uint("device_id", device.ID))
	device.User = h.crypto.DecryptUser(device.User)
	return c.JSON(http.StatusOK, device)
}

// ResendDeviceCode re-issues and dispatches a device's verification code
func (h *Handler) ResendDeviceCode(c echo.Context) error {
	deviceID, err := parseID(c.Param("id"))
	if err != nil {
		return respondError(c, apperror.NewValidationError("missing parameter [Device Id]"))
	}

	device, err := h.devices.FindByID(c.Request().Context(), deviceID)
	if err != nil {
		return respondError(c, err)
	}

	if ownerErr := h.checkDeviceOwner(c, device); ownerErr != nil {
		return respondError(c, ownerErr)
	}

	if err := h.verifier.Resend(c.Request().Context(), device); err != nil {
		return respondError(c, err)
	}

	device.User = h.crypto.DecryptUser(device.User)
	return c.JSON(http.StatusOK, device)
}

// checkDeviceOwner ensures the device is related to the :parentid user
func (h *Handler) checkDeviceOwner(c echo.Context, device *model.Device) error {
	userID, err := parseID(c.Param("parentid"))
	if err != nil {
		return apperror.NewValidationError("missing parameter [User Id]")
	}
	if device.UserID != userID {
		return apperror.NewOwnershipError("this device does not belong to you")
	}
	return nil
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperror.NewValidationError("invalid id")
	}
	return uint(id), nil
}
