package domain

const (
	EventNameSessionStarted     = "session.started"
	EventNameAnswerSubmitted    = "answer.submitted"
	EventNameLevelAdvanced      = "level.advanced"
	EventNameHintPurchased      = "hint.purchased"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

type EventSessionStarted struct {
	Session GameSession
}

func (EventSessionStarted) Name() string { return EventNameSessionStarted }

// EventAnswerSubmitted carries the session state after the answer was applied.
type EventAnswerSubmitted struct {
	Session     GameSession
	Question    Question
	IsCorrect   bool
	CoinsEarned int
}

func (EventAnswerSubmitted) Name() string { return EventNameAnswerSubmitted }

type EventLevelAdvanced struct {
	Session   GameSession
	FromLevel int
}

func (EventLevelAdvanced) Name() string { return EventNameLevelAdvanced }

type EventHintPurchased struct {
	Hint HintRequest
}

func (EventHintPurchased) Name() string { return EventNameHintPurchased }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }

// Leaderboard lists users by coins earned in descending order.
type Leaderboard struct {
	Entries []LeaderboardEntry
}

type LeaderboardEntry struct {
	UserID string
	Coins  float64
}
