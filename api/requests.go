package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type SendToMeRequest struct {
	From string `json:"from" validate:"required"`
	Text string `json:"text" validate:"required"`
}

type SendToUserRequest struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to" validate:"required"`
	Text string `json:"text" validate:"required"`
}

type TriggerRequest struct {
	Username string `json:"username" validate:"required"`
	Trigger  string `json:"trigger" validate:"required"`
	Reply    string `json:"reply" validate:"required"`
}

type ClearTriggersRequest struct {
	Username string `json:"username" validate:"required"`
}

type RegisterRequest struct {
	Phone string `json:"phone" validate:"required"`
}

type ConfirmRegistrationRequest struct {
	Phone    string `json:"phone" validate:"required"`
	Code     string `json:"code" validate:"required"`
	Password string `json:"password"`
}

type TokenRequest struct {
	Password string `json:"password" validate:"required"`
}

// bind decodes and validates the JSON body in place. On failure it writes
// the 400 response itself and returns false.
func (s *Server) bind(c *gin.Context, request any) bool {
	if err := c.ShouldBindJSON(request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return false
	}
	if err := validate.Struct(request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}
