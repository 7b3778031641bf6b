package main

import (
	"context"

	"github.com/flipsapp/flips-backend/internal/bootstrap"
	"github.com/flipsapp/flips-backend/internal/contacts"
	"github.com/flipsapp/flips-backend/internal/handler"
	"github.com/flipsapp/flips-backend/internal/identity"
	"github.com/flipsapp/flips-backend/internal/krypto"
	"github.com/flipsapp/flips-backend/internal/middleware"
	"github.com/flipsapp/flips-backend/internal/sms"
	"github.com/flipsapp/flips-backend/internal/store"
	"github.com/flipsapp/flips-backend/internal/verification"
	"github.com/flipsapp/flips-backend/pkg/config"
	"github.com/flipsapp/flips-backend/pkg/database"
	"github.com/flipsapp/flips-backend/pkg/jwtutil"
	"github.com/flipsapp/flips-backend/pkg/logger"
	"github.com/flipsapp/flips-backend/prometheus"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting Flips backend...", zap.String("environment", cfg.Server.Env))

	// Initialize database (migrations run automatically)
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established and migrations completed")

	// Persistence
	userStore := store.NewUserStore(db)
	deviceStore := store.NewDeviceStore(db)
	passportStore := store.NewPassportStore(db)

	// Domain services
	crypto := krypto.New(cfg.Crypto.PIIKey)
	sender := sms.FromConfig(&cfg.SMS, log)
	verifier := verification.NewVerifier(deviceStore, sender, crypto, cfg.SMS.Template, log)
	jwtUtil := jwtutil.NewJWTUtil(&cfg.JWT)
	identitySvc := identity.NewService(userStore, deviceStore, passportStore, verifier, crypto, jwtUtil, log)
	matcher := contacts.NewMatcher(userStore, crypto, log)
	h := handler.New(deviceStore, identitySvc, matcher, verifier, crypto)

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck(db))
	e.GET("/metrics", echo.WrapHandler(prometheus.GetPrometheusHandler()))
	e.POST("/signup", h.Signup)
	e.POST("/signin", h.Signin)

	// Password reset flow is reachable without a token: the caller proves
	// identity with the phone-bound verification code instead.
	e.POST("/user/forgot", h.Forgot)
	e.POST("/user/verify", h.VerifyForReset)
	e.PUT("/user/password", h.UpdatePassword)

	// Authenticated user surface, scoped to the token owner
	user := e.Group("/user/:parentid", middleware.Auth(jwtUtil), middleware.RequireOwner)
	user.GET("", h.GetUser)
	user.PUT("", h.UpdateUser)
	user.POST("/devices", h.CreateDevice)
	user.GET("/devices/:id", h.FindDevice)
	user.POST("/devices/:id/verify", h.VerifyDevice)
	user.POST("/devices/:id/resend", h.ResendDeviceCode)
	user.POST("/contacts", h.VerifyContacts)
	user.POST("/contacts/facebook", h.VerifyFacebookUsers)

	// Seed service accounts before accepting traffic
	seeder := bootstrap.NewSeeder(userStore, passportStore, crypto, log)
	seeder.Run(context.Background(), cfg.Seed)

	log.Info("Server starting", zap.String("port", cfg.Server.Port))
	if err := e.Start(":" + cfg.Server.Port); err != nil {
		log.Fatal("Server stopped", zap.Error(err))
	}
}
