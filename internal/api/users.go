package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/umoja/internal/user"
)

type UpdateProfileRequest struct {
	PhoneNumber *string `json:"phoneNumber" binding:"omitnil,notblank"`
	Email       *string `json:"email" binding:"omitnil,notblank"`
}

func (a *API) GetProfile(c *gin.Context) {
	claims, _ := claimsOf(c)

	u, err := a.us.Get(c.Request.Context(), claims.UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	respond(c, http.StatusOK, toUser(*u))
}

func (a *API) UpdateProfile(c *gin.Context) {
	claims, _ := claimsOf(c)

	var req UpdateProfileRequest
	if err := bindJSON(c, &req); err != nil {
		_ = c.Error(err)
		return
	}

	u, err := a.us.Update(c.Request.Context(), user.UpdateRequest{
		UserID:      claims.UserID,
		PhoneNumber: req.PhoneNumber,
		Email:       req.Email,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	respondMessage(c, http.StatusOK, "Profile updated successfully", toUser(*u))
}

func (a *API) DeleteProfile(c *gin.Context) {
	claims, _ := claimsOf(c)
	ctx := c.Request.Context()

	if err := a.us.Delete(ctx, claims.UserID); err != nil {
		_ = c.Error(err)
		return
	}

	if err := a.ls.Remove(ctx, claims.UserID); err != nil {
		slog.WarnContext(ctx, "api: remove deleted user from leaderboard failed", "user_id", claims.UserID, "error", err)
	}

	respondMessage(c, http.StatusOK, "Account deleted successfully", nil)
}

func (a *API) GetProgress(c *gin.Context) {
	claims, _ := claimsOf(c)

	ps, err := a.us.Progress(c.Request.Context(), claims.UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	respond(c, http.StatusOK, toProgress(ps))
}

func (a *API) GetStats(c *gin.Context) {
	claims, _ := claimsOf(c)

	s, err := a.us.Stats(c.Request.Context(), claims.UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	respond(c, http.StatusOK, toStats(s))
}
