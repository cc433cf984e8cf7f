package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"tg-bridge/auth"
	"tg-bridge/services"
)

// Server wires the HTTP surface over the core services. It carries no domain
// logic of its own: every handler validates the request, delegates, and maps
// core errors onto client-facing responses.
type Server struct {
	log           *slog.Logger
	messages      services.IMessageService
	triggers      services.ITriggerService
	registrations services.IRegistrationService
	health        *HealthReporter

	// Bearer-token protection; nil when no admin password is configured.
	authenticator *Authentication
}

// Authentication bundles the token issuer with the password hash it guards.
type Authentication struct {
	Tokens       *auth.Authenticator
	PasswordHash string
}

func NewServer(
	log *slog.Logger,
	messages services.IMessageService,
	triggers services.ITriggerService,
	registrations services.IRegistrationService,
	health *HealthReporter,
	authentication *Authentication,
) *Server {
	return &Server{
		log:           log,
		messages:      messages,
		triggers:      triggers,
		registrations: registrations,
		health:        health,
		authenticator: authentication,
	}
}

func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", s.handleHealth)

	protected := router.Group("/")
	if s.authenticator != nil {
		router.POST("/auth/token", s.handleToken)
		protected.Use(s.requireToken())
	}

	protected.POST("/send-to-me", s.handleSendToMe)
	protected.POST("/send-to-user", s.handleSendToUser)
	protected.POST("/trigger-message", s.handlePersistTrigger)
	protected.DELETE("/trigger-message", s.handleClearTriggers)
	protected.POST("/register", s.handleRegister)
	protected.POST("/register/confirm", s.handleConfirmRegistration)

	router.NoRoute(func(c *gin.Context) {
		c.String(http.StatusNotFound, "Not found")
	})
	return router
}
