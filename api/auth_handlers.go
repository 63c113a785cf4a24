package api

import (
	"net/http"

	"github.com/BiomeFund/biomebridge-go/config"
	"github.com/BiomeFund/biomebridge-go/services"
	"github.com/BiomeFund/biomebridge-go/utils"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

// LoginHandler authenticates the admin dashboard. When ADMIN_PASSWORD_HASH
// is set it is compared with bcrypt; otherwise the plain ADMIN_PASSWORD is
// checked.
func LoginHandler(c *gin.Context) {
	if config.JWTSecret == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Auth is not configured"})
		return
	}

	var loginReq struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&loginReq); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	if !passwordMatches(loginReq.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := utils.GenerateJWT(jwt.MapClaims{
		"role": "admin",
		"type": "admin_auth",
	}, config.JWTSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Token generation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"role":   "admin",
		"token":  token,
	})
}

func passwordMatches(password string) bool {
	if config.AdminPasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(config.AdminPasswordHash), []byte(password)) == nil
	}
	return config.AdminPassword != "" && password == config.AdminPassword
}

// StatusHandler reports pipeline counters and the active configuration.
func StatusHandler(pipeline *services.Pipeline, ledgerInfo string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"stats":       pipeline.Stats(),
			"biomePolicy": config.BiomePolicy,
			"ledger":      ledgerInfo,
		})
	}
}
