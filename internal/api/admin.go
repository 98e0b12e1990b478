package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	ledgerservice "chat-companion/backend/ledger/service"
	apperrors "chat-companion/backend/pkg/errors"
	"chat-companion/backend/pkg/jwt"
	"chat-companion/backend/pkg/logger"
)

// AdminHandler exposes the operator surface: credential login and
// ledger balance lookups.
type AdminHandler struct {
	ledger       *ledgerservice.Service
	tokens       *jwt.Service
	user         string
	passwordHash string
	log          *logger.Logger
}

func NewAdminHandler(ledger *ledgerservice.Service, tokens *jwt.Service, user, passwordHash string, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		ledger:       ledger,
		tokens:       tokens,
		user:         user,
		passwordHash: passwordHash,
		log:          log,
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login issues a JWT for the configured operator credential.
func (h *AdminHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError("INVALID_REQUEST", "username and password are required"))
		return
	}

	if req.Username != h.user ||
		bcrypt.CompareHashAndPassword([]byte(h.passwordHash), []byte(req.Password)) != nil {
		c.Error(apperrors.NewUnauthorizedError("INVALID_CREDENTIALS", "invalid username or password"))
		return
	}

	token, err := h.tokens.GenerateToken(req.Username)
	if err != nil {
		h.log.LogError(err, "generating admin token")
		c.Error(apperrors.NewInternalServerError("TOKEN_GENERATION", "could not generate token"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Balance returns a user's credit balance with a bot.
func (h *AdminHandler) Balance(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("userID"), 10, 64)
	if err != nil {
		c.Error(apperrors.NewBadRequestError("INVALID_USER_ID", "userID must be an integer"))
		return
	}
	botID, err := strconv.ParseUint(c.Param("botID"), 10, 32)
	if err != nil {
		c.Error(apperrors.NewBadRequestError("INVALID_BOT_ID", "botID must be an integer"))
		return
	}

	balance, err := h.ledger.Balance(userID, uint(botID))
	if err != nil {
		h.log.LogError(err, "reading balance", "user_id", userID, "bot_id", botID)
		c.Error(apperrors.NewInternalServerError("BALANCE_LOOKUP", "could not read balance"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"bot_id":  botID,
		"balance": balance,
	})
}

// AuthRequired rejects requests without a valid bearer token.
func (h *AdminHandler) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := h.tokens.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("admin_user", claims.Subject)
		c.Next()
	}
}
