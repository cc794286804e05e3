package api

import (
	"time"

	"github.com/victornm/umoja/internal/domain"
	"github.com/victornm/umoja/internal/game"
	"github.com/victornm/umoja/internal/user"
)

type (
	User struct {
		ID          string      `json:"id"`
		PhoneNumber string      `json:"phoneNumber"`
		Email       *string     `json:"email"`
		Role        domain.Role `json:"role"`
		Coins       int         `json:"coins"`
		TotalScore  int         `json:"totalScore"`
		GamesPlayed int         `json:"gamesPlayed"`
		IsVerified  bool        `json:"isVerified"`
		CreatedAt   time.Time   `json:"createdAt"`
		UpdatedAt   time.Time   `json:"updatedAt"`
	}

	Progress struct {
		Category         domain.Category `json:"category"`
		CurrentLevel     int             `json:"currentLevel"`
		ExperiencePoints int             `json:"experiencePoints"`
		QuestionsCorrect int             `json:"questionsCorrect"`
		QuestionsTotal   int             `json:"questionsTotal"`
		BestStreak       int             `json:"bestStreak"`
	}

	Profile struct {
		User
		Progress []Progress `json:"progress"`
	}

	Stats struct {
		User     User          `json:"user"`
		Progress []Progress    `json:"progress"`
		Sessions SessionTotals `json:"sessions"`
		Accuracy int           `json:"accuracy"`
	}

	SessionTotals struct {
		Sessions          int `json:"sessions"`
		Completed         int `json:"completed"`
		QuestionsAnswered int `json:"questionsAnswered"`
		CorrectAnswers    int `json:"correctAnswers"`
		CoinsEarned       int `json:"coinsEarned"`
		CoinsSpent        int `json:"coinsSpent"`
		HintsUsed         int `json:"hintsUsed"`
		BestStreak        int `json:"bestStreak"`
		HighestLevel      int `json:"highestLevel"`
	}

	Session struct {
		ID                     string     `json:"id"`
		UserID                 *string    `json:"userId"`
		Level                  int        `json:"level"`
		RequiredCorrect        int        `json:"requiredCorrect"`
		QuestionsAnswered      int        `json:"questionsAnswered"`
		LevelQuestionsAnswered int        `json:"levelQuestionsAnswered"`
		CorrectAnswers         int        `json:"correctAnswers"`
		CoinsEarned            int        `json:"coinsEarned"`
		CoinsSpent             int        `json:"coinsSpent"`
		HintsUsed              int        `json:"hintsUsed"`
		CurrentStreak          int        `json:"currentStreak"`
		MaxStreak              int        `json:"maxStreak"`
		IsGuest                bool       `json:"isGuest"`
		IsActive               bool       `json:"isActive"`
		StartedAt              time.Time  `json:"startedAt"`
		CompletedAt            *time.Time `json:"completedAt"`
	}

	// Question never carries the correct answer.
	Question struct {
		ID         string          `json:"id"`
		Category   domain.Category `json:"category"`
		Country    string          `json:"country,omitempty"`
		Difficulty int             `json:"difficulty,omitempty"`
		Level      int             `json:"level,omitempty"`
		Text       string          `json:"questionText"`
		OptionA    string          `json:"optionA"`
		OptionB    string          `json:"optionB"`
		OptionC    string          `json:"optionC"`
		OptionD    string          `json:"optionD"`
		Hint       string          `json:"hint,omitempty"`
	}

	GameQuestion struct {
		QuestionID string     `json:"questionId"`
		IsCorrect  *bool      `json:"isCorrect"`
		ServedAt   time.Time  `json:"servedAt"`
		AnsweredAt *time.Time `json:"answeredAt"`
	}
)

func toUser(u domain.User) User {
	return User{
		ID:          u.ID,
		PhoneNumber: u.PhoneNumber,
		Email:       u.Email,
		Role:        u.Role,
		Coins:       u.Coins,
		TotalScore:  u.TotalScore,
		GamesPlayed: u.GamesPlayed,
		IsVerified:  u.IsVerified,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func toProgress(ps []domain.UserProgress) []Progress {
	out := make([]Progress, 0, len(ps))
	for _, p := range ps {
		out = append(out, Progress{
			Category:         p.Category,
			CurrentLevel:     p.CurrentLevel,
			ExperiencePoints: p.ExperiencePoints,
			QuestionsCorrect: p.QuestionsCorrect,
			QuestionsTotal:   p.QuestionsTotal,
			BestStreak:       p.BestStreak,
		})
	}
	return out
}

func toStats(s *user.Stats) Stats {
	t := s.Sessions
	return Stats{
		User:     toUser(s.User),
		Progress: toProgress(s.Progress),
		Sessions: SessionTotals{
			Sessions:          t.Sessions,
			Completed:         t.Completed,
			QuestionsAnswered: t.QuestionsAnswered,
			CorrectAnswers:    t.CorrectAnswers,
			CoinsEarned:       t.CoinsEarned,
			CoinsSpent:        t.CoinsSpent,
			HintsUsed:         t.HintsUsed,
			BestStreak:        t.BestStreak,
			HighestLevel:      t.HighestLevel,
		},
		Accuracy: game.CompletionPercentage(t.CorrectAnswers, t.QuestionsAnswered),
	}
}

func toSession(ss domain.GameSession) Session {
	return Session{
		ID:                     ss.ID,
		UserID:                 ss.UserID,
		Level:                  ss.Level,
		RequiredCorrect:        ss.RequiredCorrect,
		QuestionsAnswered:      ss.QuestionsAnswered,
		LevelQuestionsAnswered: ss.LevelAnswered,
		CorrectAnswers:         ss.CorrectAnswers,
		CoinsEarned:            ss.CoinsEarned,
		CoinsSpent:             ss.CoinsSpent,
		HintsUsed:              ss.HintsUsed,
		CurrentStreak:          ss.CurrentStreak,
		MaxStreak:              ss.MaxStreak,
		IsGuest:                ss.IsGuest,
		IsActive:               ss.IsActive,
		StartedAt:              ss.StartedAt,
		CompletedAt:            ss.CompletedAt,
	}
}

func toQuestion(q domain.Question) Question {
	return Question{
		ID:         q.ID,
		Category:   q.Category,
		Country:    q.Country,
		Difficulty: q.Difficulty,
		Level:      q.Level,
		Text:       q.Text,
		OptionA:    q.OptionA,
		OptionB:    q.OptionB,
		OptionC:    q.OptionC,
		OptionD:    q.OptionD,
	}
}

// toPackQuestion includes the hint, since level packs are played offline.
func toPackQuestion(q domain.Question) Question {
	return Question{
		ID:       q.ID,
		Category: q.Category,
		Text:     q.Text,
		OptionA:  q.OptionA,
		OptionB:  q.OptionB,
		OptionC:  q.OptionC,
		OptionD:  q.OptionD,
		Hint:     q.Hint,
	}
}

func toGameQuestions(gqs []domain.GameQuestion) []GameQuestion {
	out := make([]GameQuestion, 0, len(gqs))
	for _, gq := range gqs {
		out = append(out, GameQuestion{
			QuestionID: gq.QuestionID,
			IsCorrect:  gq.IsCorrect,
			ServedAt:   gq.ServedAt,
			AnsweredAt: gq.AnsweredAt,
		})
	}
	return out
}
