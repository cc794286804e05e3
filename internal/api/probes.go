package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

var startedAt = time.Now()

func (a *API) Health(c *gin.Context) {
	status, db, code := "OK", "Connected", http.StatusOK
	if err := a.db.Ping(c.Request.Context()); err != nil {
		status, db, code = "ERROR", "Disconnected", http.StatusInternalServerError
	}

	c.JSON(code, gin.H{
		"status":      status,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"uptime":      time.Since(startedAt).Seconds(),
		"database":    db,
		"environment": a.env,
	})
}

func (a *API) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":     "Umoja Trivia API is running",
		"version":     a.ver,
		"environment": a.env,
		"database":    "PostgreSQL",
	})
}

func (a *API) DBTest(c *gin.Context) {
	stats, err := a.db.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Database connection failed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database connection successful",
		"data": gin.H{
			"users":         stats.Users,
			"questions":     stats.Questions,
			"gameSessions":  stats.GameSessions,
			"coinTransfers": stats.CoinTransfers,
		},
	})
}
