package handler

import (
	"net/http"

	"github.com/flipsapp/flips-backend/internal/apperror"
	"github.com/flipsapp/flips-backend/internal/identity"
	"github.com/flipsapp/flips-backend/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type forgotRequest struct {
	PhoneNumber string `json:"phone_number" form:"phone_number"`
	DeviceID    uint   `json:"device_id" form:"device_id"`
	Platform    string `json:"platform" form:"platform"`
	DeviceToken string `json:"device_token" form:"device_token"`
}

// Forgot starts the password reset flow and dispatches a fresh code
func (h *Handler) Forgot(c echo.Context) error {
	var req forgotRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperror.NewValidationError("invalid request"))
	}
	if req.PhoneNumber == "" {
		return respondError(c, apperror.NewValidationError("missing parameter [Phone Number]"))
	}

	deviceID, err := h.identity.Forgot(c.Request().Context(), identity.ForgotInput{
		PhoneNumber: req.PhoneNumber,
		DeviceID:    req.DeviceID,
		Platform:    req.Platform,
		DeviceToken: req.DeviceToken,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"id": deviceID})
}

type verifyResetRequest struct {
	PhoneNumber      string `json:"phone_number" form:"phone_number"`
	VerificationCode string `json:"verification_code" form:"verification_code"`
	DeviceID         uint   `json:"device_id" form:"device_id"`
	NewPhoneNumber   string `json:"new_phone_number" form:"new_phone_number"`
}

// VerifyForReset submits a code for the reset flow and promotes the user
func (h *Handler) VerifyForReset(c echo.Context) error {
	log := logger.FromEcho(c)

	var req verifyResetRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperror.NewValidationError("invalid request"))
	}
	if req.PhoneNumber == "" || req.VerificationCode == "" {
		return respondError(c, apperror.NewValidationError("phone number or verification code is empty"))
	}
	if req.DeviceID == 0 {
		return respondError(c, apperror.NewValidationError("missing parameter [Device Id]"))
	}

	device, err := h.identity.VerifyForReset(c.Request().Context(),
		req.PhoneNumber, req.VerificationCode, req.DeviceID, req.NewPhoneNumber)
	if err != nil {
		return respondError(c, err)
	}

	log.Info("Reset verification accepted", zap.Uint("device_id", device.ID))
	return c.JSON(http.StatusOK, device)
}

type updatePasswordRequest struct {
	Email            string `json:"email" form:"email"`
	PhoneNumber      string `json:"phone_number" form:"phone_number"`
	VerificationCode string `json:"verification_code" form:"verification_code"`
	Password         string `json:"password" form:"password"`
	DeviceID         uint   `json:"device_id" form:"device_id"`
}

// UpdatePassword finishes the reset flow with a fully verified identity
func (h *Handler) UpdatePassword(c echo.Context) error {
	var req updatePasswordRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperror.NewValidationError("invalid request"))
	}
	if req.Email == "" || req.PhoneNumber == "" || req.VerificationCode == "" || req.Password == "" {
		return respondError(c, apperror.NewValidationError("missing parameters"))
	}

	err := h.identity.UpdatePassword(c.Request().Context(),
		req.Email, req.PhoneNumber, req.VerificationCode, req.DeviceID, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{})
}

type contactsRequest struct {
	PhoneNumbers []string `json:"phoneNumbers" form:"phoneNumbers"`
}

// VerifyContacts matches a batch of phone numbers against registered users
func (h *Handler) VerifyContacts(c echo.Context) error {
	var req contactsRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperror.NewValidationError("invalid request"))
	}

	profiles, err := h.contacts.MatchPhoneNumbers(c.Request().Context(), req.PhoneNumbers)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, profiles)
}

type facebookContactsRequest struct {
	FacebookIDs []string `json:"facebookIDs" form:"facebookIDs"`
}

// VerifyFacebookUsers matches a batch of facebook ids against registered users
func (h *Handler) VerifyFacebookUsers(c echo.Context) error {
	var req facebookContactsRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperror.NewValidationError("invalid request"))
	}

	profiles, err := h.contacts.MatchFacebookIDs(c.Request().Context(), req.FacebookIDs)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, profiles)
}

// GetUser returns the decrypted profile of the authenticated user
func (h *Handler) GetUser(c echo.Context) error {
	userID, err := parseID(c.Param("parentid"))
	if err != nil {
		return respondError(c, apperror.NewValidationError("missing parameter [User Id]"))
	}

	user, err := h.identity.GetUser(c.Request().Context(), userID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, user)
}

type updateUserRequest struct {
	Username    *string `json:"username" form:"username"`
	FirstName   *string `json:"firstName" form:"firstName"`
	LastName    *string `json:"lastName" form:"lastName"`
	Nickname    *string `json:"nickname" form:"nickname"`
	PhoneNumber *string `json:"phoneNumber" form:"phoneNumber"`
	PhotoURL    *string `json:"photoUrl" form:"photoUrl"`
	Password    *string `json:"password" form:"password"`
}

// UpdateUser applies a profile update, re-encrypting changed fields
func (h *Handler) UpdateUser(c echo.Context) error {
	log := logger.FromEcho(c)

	userID, err := parseID(c.Param("parentid"))
	if err != nil {
		return respondError(c, apperror.NewValidationError("missing parameter [User Id]"))
	}

	var req updateUserRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperror.NewValidationError("invalid request"))
	}

	user, err := h.identity.UpdateUser(c.Request().Context(), userID, identity.UpdateInput{
		Username:    req.Username,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Nickname:    req.Nickname,
		PhoneNumber: req.PhoneNumber,
		PhotoURL:    req.PhotoURL,
		Password:    req.Password,
	})
	if err != nil {
		return respondError(c, err)
	}

	log.Info("User profile updated", zap.Uint("user_id", userID))
	return c.JSON(http.StatusOK, user)
}
