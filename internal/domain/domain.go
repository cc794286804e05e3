package domain

import (
	"time"
)

type Role string

const (
	RolePlayer     Role = "PLAYER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

type Category string

const (
	CategoryPlaces         Category = "PLACES"
	CategoryPeople         Category = "PEOPLE"
	CategoryFood           Category = "FOOD"
	CategoryCulture        Category = "CULTURE"
	CategoryDrinks         Category = "DRINKS"
	CategoryMusic          Category = "MUSIC"
	CategoryCurrentAffairs Category = "CURRENT_AFFAIRS"
)

// Categories lists every question category in canonical order.
var Categories = []Category{
	CategoryPlaces,
	CategoryPeople,
	CategoryFood,
	CategoryCulture,
	CategoryDrinks,
	CategoryMusic,
	CategoryCurrentAffairs,
}

func (c Category) Valid() bool {
	for _, x := range Categories {
		if c == x {
			return true
		}
	}
	return false
}

// Option is one of the four answer slots of a question.
type Option string

const (
	OptionA Option = "A"
	OptionB Option = "B"
	OptionC Option = "C"
	OptionD Option = "D"
)

func (o Option) Valid() bool {
	switch o {
	case OptionA, OptionB, OptionC, OptionD:
		return true
	}
	return false
}

type User struct {
	ID          string
	PhoneNumber string
	Email       *string
	Role        Role
	Coins       int
	TotalScore  int
	GamesPlayed int
	IsVerified  bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Question struct {
	ID            string
	Category      Category
	Country       string
	Difficulty    int
	Level         int
	Text          string
	OptionA       string
	OptionB       string
	OptionC       string
	OptionD       string
	CorrectAnswer Option
	Explanation   string
	Hint          string
	HintCost      int
	IsActive      bool
	CreatedAt     time.Time
}

// GameSession is one play-through. UserID is nil for guest sessions.
// QuestionsAnswered spans the whole session, LevelAnswered only the current level.
type GameSession struct {
	ID                string
	UserID            *string
	Level             int
	RequiredCorrect   int
	QuestionsAnswered int
	LevelAnswered     int
	CorrectAnswers    int
	CoinsEarned       int
	CoinsSpent        int
	HintsUsed         int
	CurrentStreak     int
	MaxStreak         int
	IsGuest           bool
	IsActive          bool
	StartedAt         time.Time
	CompletedAt       *time.Time
	UpdatedAt         time.Time
}

// GameQuestion records that a question was served within a session.
type GameQuestion struct {
	ID         string
	SessionID  string
	QuestionID string
	IsCorrect  *bool
	ServedAt   time.Time
	AnsweredAt *time.Time
}

type HintRequest struct {
	ID         string
	UserID     *string
	SessionID  string
	QuestionID string
	HintText   string
	CoinsSpent int
	CreatedAt  time.Time
}

type UserProgress struct {
	UserID           string
	Category         Category
	CurrentLevel     int
	ExperiencePoints int
	QuestionsCorrect int
	QuestionsTotal   int
	BestStreak       int
}

// AnswerUpdate is applied to a session in a single statement after an answer.
// When CorrectAnswers is set, the stored count is overwritten with it instead of being incremented.
type AnswerUpdate struct {
	Correct        bool
	CorrectAnswers *int
	CoinsEarned    int
}

// ProgressDelta is merged into the progress row of (UserID, Category).
type ProgressDelta struct {
	UserID           string
	Category         Category
	Level            int
	ExperiencePoints int
	Correct          bool
	Streak           int
}

// QuestionFilter selects active questions, oldest first.
type QuestionFilter struct {
	Categories []Category
	Level      int
	// ExcludeServedIn skips questions already served in the given session.
	ExcludeServedIn string
	Limit           int
}

type DBStats struct {
	Users         int64
	Questions     int64
	GameSessions  int64
	CoinTransfers int64
}

// SessionTotals aggregates the sessions of one user.
type SessionTotals struct {
	Sessions          int
	Completed         int
	QuestionsAnswered int
	CorrectAnswers    int
	CoinsEarned       int
	CoinsSpent        int
	HintsUsed         int
	BestStreak        int
	HighestLevel      int
}
