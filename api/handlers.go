package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tg-bridge/auth"
	apperrors "tg-bridge/errors"
)

func (s *Server) handleSendToMe(c *gin.Context) {
	var request SendToMeRequest
	if !s.bind(c, &request) {
		return
	}
	if err := s.messages.SendToSelf(c.Request.Context(), request.From, request.Text); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleSendToUser(c *gin.Context) {
	var request SendToUserRequest
	if !s.bind(c, &request) {
		return
	}
	if err := s.messages.SendToUser(c.Request.Context(), request.From, request.To, request.Text); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handlePersistTrigger(c *gin.Context) {
	var request TriggerRequest
	if !s.bind(c, &request) {
		return
	}
	err := s.triggers.PersistTrigger(c.Request.Context(), request.Username, request.Trigger, request.Reply)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleClearTriggers(c *gin.Context) {
	var request ClearTriggersRequest
	if !s.bind(c, &request) {
		return
	}
	if err := s.triggers.ClearTriggers(request.Username); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleRegister(c *gin.Context) {
	var request RegisterRequest
	if !s.bind(c, &request) {
		return
	}
	status, err := s.registrations.Begin(c.Request.Context(), request.Phone)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": status})
}

func (s *Server) handleConfirmRegistration(c *gin.Context) {
	var request ConfirmRegistrationRequest
	if !s.bind(c, &request) {
		return
	}
	status, err := s.registrations.Confirm(c.Request.Context(), request.Phone, request.Code, request.Password)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": status})
}

func (s *Server) handleToken(c *gin.Context) {
	var request TokenRequest
	if !s.bind(c, &request) {
		return
	}

	match, err := auth.ComparePassword(request.Password, s.authenticator.PasswordHash)
	if err != nil || !match {
		c.JSON(http.StatusUnauthorized, gin.H{"error": apperrors.ErrInvalidPassword.Error()})
		return
	}

	token, err := s.authenticator.Tokens.GenerateToken()
	if err != nil {
		s.log.Error("Token generation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": apperrors.ErrTokenGeneration.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "token": token})
}

func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		if _, err := s.authenticator.Tokens.ValidateToken(token); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}

// renderError maps the core error taxonomy onto client-facing statuses,
// so coordinator and registry failures never surface as opaque 500s.
func (s *Server) renderError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperrors.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, apperrors.ErrNotRegistered),
		errors.Is(err, apperrors.ErrNoPendingRegistration):
		status = http.StatusNotFound
	case errors.Is(err, apperrors.ErrRegistrationInProgress),
		errors.Is(err, apperrors.ErrPhoneMismatch):
		status = http.StatusConflict
	case errors.Is(err, apperrors.ErrConnectFailure):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		s.log.Error("Request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
