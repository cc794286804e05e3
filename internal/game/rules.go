package game

import (
	"github.com/victornm/umoja/internal/domain"
)

const (
	InitialLevel             = 1
	InitialCoins             = 100
	RequiredCorrectBase      = 20
	RequiredCorrectIncrement = 5
	HintCost                 = 2
	TimerSeconds             = 15

	initialLevelQuota = 20
	defaultCoins      = 1
)

var coinsPerCorrect = map[int]int{
	1: 1,
	2: 2,
	3: 3,
}

var (
	initialTopics = []domain.Category{
		domain.CategoryPlaces,
		domain.CategoryPeople,
		domain.CategoryFood,
		domain.CategoryCurrentAffairs,
	}

	mandatoryTopics = []domain.Category{
		domain.CategoryPlaces,
		domain.CategoryPeople,
		domain.CategoryFood,
		domain.CategoryCulture,
	}

	// unlockOrder lists the topics opened one per level above the first.
	unlockOrder = []domain.Category{
		domain.CategoryCulture,
		domain.CategoryDrinks,
		domain.CategoryMusic,
	}
)

// RequiredCorrect is the number of correct answers needed to clear level.
func RequiredCorrect(level int) int {
	return RequiredCorrectBase + (level-1)*RequiredCorrectIncrement
}

// CoinsEarned is the reward for one correct answer at level.
func CoinsEarned(level int) int {
	if c, ok := coinsPerCorrect[level]; ok {
		return c
	}
	return defaultCoins
}

// LevelQuota is the number of questions a level is expected to serve.
func LevelQuota(level int) int {
	if level == InitialLevel {
		return initialLevelQuota
	}
	return RequiredCorrect(level)
}

// UnlockedTopics returns the categories questions are drawn from at level.
func UnlockedTopics(level int) []domain.Category {
	if level <= InitialLevel {
		out := make([]domain.Category, 0, len(initialTopics))
		for _, t := range initialTopics {
			if containsCategory(mandatoryTopics, t) {
				out = append(out, t)
			}
		}
		return out
	}

	n := min(level-1, len(unlockOrder))
	out := make([]domain.Category, 0, len(initialTopics)+n)
	out = append(out, initialTopics...)
	out = append(out, unlockOrder[:n]...)
	return out
}

func containsCategory(cs []domain.Category, c domain.Category) bool {
	for _, x := range cs {
		if x == c {
			return true
		}
	}
	return false
}
