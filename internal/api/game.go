package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/umoja/internal/domain"
	"github.com/victornm/umoja/internal/game"
)

type (
	StartSessionRequest struct {
		// UserID is ignored; the owner comes from the bearer token.
		UserID string `json:"userId"`
	}

	NextQuestionResponse struct {
		Question Question `json:"question"`
		Timer    int      `json:"timer"`
	}

	SubmitAnswerRequest struct {
		SessionID      string `json:"sessionId" binding:"required"`
		QuestionID     string `json:"questionId" binding:"required"`
		SelectedOption string `json:"selectedOption" binding:"required"`
	}

	SubmitAnswerResponse struct {
		IsCorrect           bool          `json:"isCorrect"`
		CorrectAnswer       domain.Option `json:"correctAnswer"`
		CoinsEarned         int           `json:"coinsEarned"`
		RequireRegistration bool          `json:"requireRegistration"`
		LevelComplete       bool          `json:"levelComplete"`
		Level               int           `json:"level"`
	}

	HintRequest struct {
		SessionID  string `json:"sessionId" binding:"required"`
		QuestionID string `json:"questionId" binding:"required"`
		// UserID is ignored, guests get anonymous hints.
		UserID     string `json:"userId"`
	}

	ResultsResponse struct {
		Session              Session        `json:"session"`
		Questions            []GameQuestion `json:"questions"`
		Answered             int            `json:"answered"`
		Correct              int            `json:"correct"`
		Incorrect            int            `json:"incorrect"`
		Skipped              int            `json:"skipped"`
		CompletionPercentage int            `json:"completionPercentage"`
		DurationSeconds      int64          `json:"durationSeconds"`
	}
)

func (a *API) StartSession(c *gin.Context) {
	var req StartSessionRequest
	if c.Request.ContentLength > 0 {
		if err := bindJSON(c, &req); err != nil {
			_ = c.Error(err)
			return
		}
	}

	sreq := game.StartSessionRequest{}
	if claims, ok := claimsOf(c); ok {
		sreq.UserID = claims.UserID
		sreq.Authenticated = true
	}

	ss, err := a.gs.StartSession(c.Request.Context(), sreq)
	if err != nil {
		_ = c.Error(err)
		return
	}

	respond(c, http.StatusCreated, toSession(*ss))
}

func (a *API) NextQuestion(c *gin.Context) {
	resp, err := a.gs.NextQuestion(c.Request.Context(), game.NextQuestionRequest{
		SessionID: c.Param("sessionId"),
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	respond(c, http.StatusOK, NextQuestionResponse{
		Question: toQuestion(resp.Question),
		Timer:    resp.Timer,
	})
}

func (a *API) SubmitAnswer(c *gin.Context) {
	var req SubmitAnswerRequest
	if err := bindJSON(c, &req); err != nil {
		_ = c.Error(err)
		return
	}

	_, authenticated := claimsOf(c)

	resp, err := a.gs.SubmitAnswer(c.Request.Context(), game.SubmitAnswerRequest{
		SessionID:      req.SessionID,
		QuestionID:     req.QuestionID,
		SelectedOption: req.SelectedOption,
		Authenticated:  authenticated,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	respond(c, http.StatusOK, SubmitAnswerResponse{
		IsCorrect:           resp.IsCorrect,
		CorrectAnswer:       resp.CorrectAnswer,
		CoinsEarned:         resp.CoinsEarned,
		RequireRegistration: resp.RequireRegistration,
		LevelComplete:       resp.LevelComplete,
		Level:               resp.Level,
	})
}

func (a *API) Hint(c *gin.Context) {
	var req HintRequest
	if err := bindJSON(c, &req); err != nil {
		_ = c.Error(err)
		return
	}

	hreq := game.HintRequest{
		SessionID:  req.SessionID,
		QuestionID: req.QuestionID,
	}
	if claims, ok := claimsOf(c); ok {
		hreq.UserID = claims.UserID
		hreq.Authenticated = true
	}

	resp, err := a.gs.Hint(c.Request.Context(), hreq)
	if err != nil {
		_ = c.Error(err)
		return
	}

	respond(c, http.StatusOK, gin.H{"hintText": resp.HintText})
}

func (a *API) Results(c *gin.Context) {
	resp, err := a.gs.Results(c.Request.Context(), game.ResultsRequest{
		SessionID: c.Param("sessionId"),
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	respond(c, http.StatusOK, ResultsResponse{
		Session:              toSession(resp.Session),
		Questions:            toGameQuestions(resp.Questions),
		Answered:             resp.Answered,
		Correct:              resp.Correct,
		Incorrect:            resp.Incorrect,
		Skipped:              resp.Skipped,
		CompletionPercentage: resp.CompletionPercentage,
		DurationSeconds:      int64(resp.Duration.Seconds()),
	})
}
