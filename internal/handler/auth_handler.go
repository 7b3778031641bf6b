package handler

import (
	"net/http"
	"time"

	"github.com/flipsapp/flips-backend/internal/apperror"
	"github.com/flipsapp/flips-backend/internal/identity"
	"github.com/flipsapp/flips-backend/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// birthdayLayouts covers the formats the mobile clients send
var birthdayLayouts = []string{time.RFC3339, "2006-01-02"}

type signupRequest struct {
	Username    string `json:"username" form:"username"`
	Password    string `json:"password" form:"password"`
	FirstName   string `json:"firstName" form:"firstName"`
	LastName    string `json:"lastName" form:"lastName"`
	Birthday    string `json:"birthday" form:"birthday"`
	Nickname    string `json:"nickname" form:"nickname"`
	PhoneNumber string `json:"phoneNumber" form:"phoneNumber"`
	PhotoURL    string `json:"photoUrl" form:"photoUrl"`
	FacebookID  string `json:"facebookID" form:"facebookID"`
}

// Signup creates a user together with its local passport
func (h *Handler) Signup(c echo.Context) error {
	log := logger.FromEcho(c)

	var req signupRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperror.NewValidationError("invalid request"))
	}
	if req.Username == "" || req.Password == "" || req.Birthday == "" {
		return respondError(c, apperror.NewValidationError("missing parameters"))
	}

	birthday, err := parseBirthday(req.Birthday)
	if err != nil {
		return respondError(c, err)
	}

	user, err := h.identity.Signup(c.Request().Context(), identity.SignupInput{
		Username:    req.Username,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Birthday:    birthday,
		Nickname:    req.Nickname,
		PhoneNumber: req.PhoneNumber,
		PhotoURL:    req.PhotoURL,
		FacebookID:  req.FacebookID,
	})
	if err != nil {
		return respondError(c, err)
	}

	log.Info("User registered", zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusCreated, user)
}

type signinRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// Signin performs a local login and returns a signed token
func (h *Handler) Signin(c echo.Context) error {
	var req signinRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperror.NewValidationError("invalid request"))
	}
	if req.Username == "" || req.Password == "" {
		return respondError(c, apperror.NewValidationError("missing parameters"))
	}

	user, token, err := h.identity.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
		"user":  user,
	})
}

func parseBirthday(raw string) (time.Time, error) {
	for _, layout := range birthdayLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperror.NewValidationError("invalid birthday format")
}
