package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/BiomeFund/biomebridge-go/gateway"
	"github.com/BiomeFund/biomebridge-go/services"
	"github.com/gin-gonic/gin"
)

// ProcessITNHandler receives the payment gateway's instant transaction
// notification and runs it through the pipeline.
func ProcessITNHandler(pipeline *services.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := c.Request.ParseForm(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid form payload"})
			return
		}

		raw := make(map[string]string, len(c.Request.PostForm))
		for key, values := range c.Request.PostForm {
			if len(values) > 0 {
				raw[key] = values[0]
			}
		}

		result, err := pipeline.Process(c.Request.Context(), raw)
		if err != nil {
			var perr *services.PipelineError
			if errors.As(err, &perr) {
				log.Printf("ERROR: ITN processing failed at %s: %v", perr.State, perr.Err)
				c.JSON(statusForKind(perr.Kind), gin.H{
					"error": perr.Err.Error(),
					"kind":  perr.Kind.String(),
					"state": perr.State.String(),
				})
				return
			}
			log.Printf("ERROR: ITN processing failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			return
		}

		if result.Duplicate {
			c.JSON(http.StatusOK, gin.H{
				"status":    "ok",
				"duplicate": true,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":       "ok",
			"duplicate":    false,
			"donationId":   result.DonationID,
			"giftId":       result.GiftID,
			"grantedCards": result.GrantedCards,
		})
	}
}

func statusForKind(kind services.ErrorKind) int {
	switch kind {
	case services.KindMissingIdentity:
		return http.StatusBadRequest
	case services.KindUnknownBiome:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// CancelSubscriptionHandler forwards a signed cancel request to the payment
// gateway and mirrors its reported status.
func CancelSubscriptionHandler(gw *gateway.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Token string `json:"token" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
			return
		}

		if err := gw.CancelSubscription(c.Request.Context(), req.Token); err != nil {
			var gerr *gateway.GatewayError
			if errors.As(err, &gerr) {
				log.Printf("ERROR: Subscription cancel rejected for token %s: %v", req.Token, err)
				c.JSON(http.StatusInternalServerError, gin.H{
					"error":  "gateway rejected cancellation",
					"kind":   services.KindGateway.String(),
					"detail": gerr.Body,
				})
				return
			}
			log.Printf("ERROR: Subscription cancel failed for token %s: %v", req.Token, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "success"})
	}
}

// HealthHandler is a liveness probe.
func HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
