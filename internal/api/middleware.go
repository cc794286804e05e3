package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/victornm/umoja/internal/auth"
	"github.com/victornm/umoja/internal/errors"
)

const claimsKey = "claims"

type envelope struct {
	Success bool        `json:"success"`
	Data    any         `json:"data,omitempty"`
	Error   errors.Kind `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, envelope{Success: true, Data: data})
}

func respondMessage(c *gin.Context, status int, msg string, data any) {
	c.JSON(status, envelope{Success: true, Data: data, Message: msg})
}

// Errors renders the last error attached to the context.
// Anything that is not an *errors.Error is reported as INTERNAL.
func Errors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		e := errors.Convert(err)
		if e.Kind == errors.KindInternal {
			slog.ErrorContext(c.Request.Context(), "api: request failed",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"error", err,
			)
		}

		c.JSON(e.HTTPStatusCode(), envelope{
			Success: false,
			Error:   e.Kind,
			Message: e.Message,
		})
	}
}

// NotFound answers unknown routes with the error envelope.
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, envelope{
		Success: false,
		Error:   "NOT_FOUND",
		Message: "Route not found: " + c.Request.Method + " " + c.Request.URL.Path,
	})
}

// Authenticate verifies the bearer token. When required is false, requests without
// a usable token continue as guests. Failures to check the token still abort.
func (a *API) Authenticate(required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer(c.GetHeader("Authorization"))

		if token == "" {
			if required {
				abort(c, errors.New(errors.KindAuthentication, errors.WithMessagef("Access token required")))
				return
			}
			c.Next()
			return
		}

		claims, err := a.as.Authorize(c.Request.Context(), token)
		if err != nil {
			if required || !rejected(err) {
				abort(c, err)
				return
			}
			c.Next()
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// rejected reports whether err says the token itself is unusable.
func rejected(err error) bool {
	switch errors.KindOf(err) {
	case errors.KindInvalidToken, errors.KindTokenExpired, errors.KindAuthentication:
		return true
	}
	return false
}

func bearer(h string) string {
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func claimsOf(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}

func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
