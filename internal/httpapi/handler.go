package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuthHandler atiende el alta de sesiones anónimas.
type AuthHandler struct {
	logger *zap.Logger
	tokens *TokenService
}

func NewAuthHandler(logger *zap.Logger, tokens *TokenService) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{logger: logger, tokens: tokens}
}

// Anonymous emite un uid fresco con su token firmado. No hay credenciales:
// cada llamada crea una sesión nueva.
func (h *AuthHandler) Anonymous(c *gin.Context) {
	uid := uuid.NewString()
	token, err := h.tokens.Mint(uid)
	if err != nil {
		h.logger.Error("token mint failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_mint_failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"uid": uid, "token": token})
}
