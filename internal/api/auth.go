package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/umoja/internal/auth"
)

type (
	LoginRequest struct {
		IDToken string `json:"idToken" binding:"required,notblank"`
	}

	LoginResponse struct {
		Token        string `json:"token"`
		RefreshToken string `json:"refreshToken"`
		User         User   `json:"user"`
		IsNewUser    bool   `json:"isNewUser"`
	}

	RefreshRequest struct {
		RefreshToken string `json:"refreshToken"`
	}
)

func (a *API) Login(c *gin.Context) {
	var req LoginRequest
	if err := bindJSON(c, &req); err != nil {
		_ = c.Error(err)
		return
	}

	resp, err := a.as.Login(c.Request.Context(), auth.LoginRequest{IDToken: req.IDToken})
	if err != nil {
		_ = c.Error(err)
		return
	}

	respondMessage(c, http.StatusOK, "Authentication successful", LoginResponse{
		Token:        resp.Token,
		RefreshToken: resp.RefreshToken,
		User:         toUser(resp.User),
		IsNewUser:    resp.Created,
	})
}

func (a *API) AuthProfile(c *gin.Context) {
	claims, _ := claimsOf(c)

	p, err := a.as.Profile(c.Request.Context(), claims.UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	respond(c, http.StatusOK, Profile{
		User:     toUser(p.User),
		Progress: toProgress(p.Progress),
	})
}

func (a *API) Refresh(c *gin.Context) {
	claims, _ := claimsOf(c)

	var req RefreshRequest
	if c.Request.ContentLength > 0 {
		if err := bindJSON(c, &req); err != nil {
			_ = c.Error(err)
			return
		}
	}

	token, err := a.as.Refresh(c.Request.Context(), auth.RefreshRequest{
		UserID:       claims.UserID,
		RefreshToken: req.RefreshToken,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	respond(c, http.StatusOK, gin.H{"token": token})
}
