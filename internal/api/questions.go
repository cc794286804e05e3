package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/victornm/umoja/internal/domain"
	"github.com/victornm/umoja/internal/errors"
)

type (
	LevelPackResponse struct {
		Level     int               `json:"level"`
		Duration  int               `json:"duration"`
		Topics    []domain.Category `json:"topics"`
		Questions []Question        `json:"questions"`
	}

	LeaderboardEntry struct {
		Rank   int     `json:"rank"`
		UserID string  `json:"userId"`
		Coins  float64 `json:"coins"`
	}
)

// LevelQuestions serves the level from the path, else from ?level=, else level 1.
func (a *API) LevelQuestions(c *gin.Context) {
	raw := c.Param("level")
	if raw == "" {
		raw = c.DefaultQuery("level", "1")
	}

	level, err := strconv.Atoi(raw)
	if err != nil {
		_ = c.Error(errors.New(errors.KindValidation, errors.WithMessagef("Invalid level: %s", raw)))
		return
	}

	p, err := a.qs.LevelPack(c.Request.Context(), level)
	if err != nil {
		_ = c.Error(err)
		return
	}

	qs := make([]Question, 0, len(p.Questions))
	for _, q := range p.Questions {
		qs = append(qs, toPackQuestion(q))
	}

	respond(c, http.StatusOK, LevelPackResponse{
		Level:     p.Level,
		Duration:  p.Duration,
		Topics:    p.Topics,
		Questions: qs,
	})
}

func (a *API) GetLeaderboard(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil {
		_ = c.Error(errors.New(errors.KindValidation, errors.WithMessagef("Invalid limit")))
		return
	}

	l, err := a.ls.GetLeaderboard(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		return
	}

	respond(c, http.StatusOK, toLeaderboard(*l))
}

func toLeaderboard(l domain.Leaderboard) []LeaderboardEntry {
	out := make([]LeaderboardEntry, 0, len(l.Entries))
	for i, e := range l.Entries {
		out = append(out, LeaderboardEntry{
			Rank:   i + 1,
			UserID: e.UserID,
			Coins:  e.Coins,
		})
	}
	return out
}
