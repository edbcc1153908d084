package health

import (
	"strings"
	"time"

	"github.com/customerpulse/pulse/internal/models"
)

// Pillar weights in percent; the four secondary pillars get 15 each
const (
	weightSentiment  = 20
	weightEngagement = 20
	weightSecondary  = 15
)

const (
	// DecayFloor is the lowest score decay can push an account to
	DecayFloor = 30
	// DecayPointsPerDay is subtracted for every day past the check-in interval
	DecayPointsPerDay = 2
)

// Pillars holds the six sub-scores, each in [0,100]
type Pillars struct {
	Sentiment    int `json:"sentiment"`
	Engagement   int `json:"engagement"`
	Request      int `json:"request"`
	Relationship int `json:"relationship"`
	Satisfaction int `json:"satisfaction"`
	Expansion    int `json:"expansion"`
}

// Overall combines the pillars by their fixed weights, rounding down.
// Integer arithmetic keeps exact boundaries like 70 from landing on 69.
func (p Pillars) Overall() int {
	total := weightSentiment*p.Sentiment +
		weightEngagement*p.Engagement +
		weightSecondary*(p.Request+p.Relationship+p.Satisfaction+p.Expansion)
	return clamp(total / 100)
}

// SentimentScore averages positive=100, negative=0 and anything else=50
func SentimentScore(extractions []models.SignalExtraction) int {
	if len(extractions) == 0 {
		return 50
	}

	total := 0
	for _, e := range extractions {
		switch strings.ToLower(e.Sentiment) {
		case "positive":
			total += 100
		case "negative":
		default:
			total += 50
		}
	}
	return total / len(extractions)
}

// EngagementScore is a staircase over days since the last communication
// relative to the check-in interval. No communication scores 0.
func EngagementScore(daysSince *int, interval int) int {
	if daysSince == nil {
		return 0
	}

	days := *daysSince
	switch {
	case days <= interval:
		return 100
	case days <= interval*2:
		return 70
	case days <= interval*3:
		return 40
	default:
		return 0
	}
}

// RequestScore starts at 100 and subtracts 30 per bug/issue signal and 15 per
// request/feature signal. A signal can incur both penalties.
func RequestScore(extractions []models.SignalExtraction) int {
	score := 100
	for _, signal := range allSignals(extractions) {
		if containsAny(signal, "bug", "issue") {
			score -= 30
		}
		if containsAny(signal, "request", "feature") {
			score -= 15
		}
	}
	return clamp(score)
}

// RelationshipScore tiers on contact count
func RelationshipScore(contacts int) int {
	switch {
	case contacts <= 0:
		return 0
	case contacts == 1:
		return 50
	default:
		return 100
	}
}

// SatisfactionScore averages signal-level satisfaction. Negative words are
// checked first so "unhappy" and "dissatisfied" are not read as positive.
// Without any signals it falls back to the sentiment pillar.
func SatisfactionScore(extractions []models.SignalExtraction) int {
	signals := allSignals(extractions)
	if len(signals) == 0 {
		return SentimentScore(extractions)
	}

	total := 0
	for _, signal := range signals {
		switch {
		case containsAny(signal, "unhappy", "frustrated", "dissatisfied"):
		case containsAny(signal, "happy", "love", "satisfied"):
			total += 100
		default:
			total += 50
		}
	}
	return total / len(signals)
}

// ExpansionScore adds 50 per growth signal, capped at 100
func ExpansionScore(extractions []models.SignalExtraction) int {
	score := 0
	for _, signal := range allSignals(extractions) {
		if containsAny(signal, "upsell", "expansion", "growth", "add-on") {
			score += 50
		}
	}
	if score > 100 {
		return 100
	}
	return score
}

// ApplyDecay lowers a score when the account has gone quiet. With no
// communication at all the score is forced to the floor; an overdue score is
// clamped at the floor.
func ApplyDecay(score int, daysSince *int, interval int) (int, bool) {
	if daysSince == nil {
		return DecayFloor, true
	}

	overdue := *daysSince - interval
	if overdue <= 0 {
		return score, false
	}
	decayed := score - DecayPointsPerDay*overdue
	if decayed < DecayFloor {
		decayed = DecayFloor
	}
	return decayed, true
}

// StatusFor maps a score to its status band
func StatusFor(score int) string {
	switch {
	case score < 40:
		return models.StatusAtRisk
	case score < 70:
		return models.StatusWarning
	default:
		return models.StatusHealthy
	}
}

// Trend compares a score to the previous snapshot's score
func Trend(current int, previous *int) (change *int, direction string) {
	if previous == nil {
		return nil, models.TrendNew
	}

	diff := current - *previous
	switch {
	case diff > 5:
		direction = models.TrendUp
	case diff < -5:
		direction = models.TrendDown
	default:
		direction = models.TrendStable
	}
	return &diff, direction
}

// DaysSince returns whole days elapsed from last to now; future dates count as 0
func DaysSince(last, now time.Time) int {
	d := int(now.Sub(last).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

func allSignals(extractions []models.SignalExtraction) []string {
	var out []string
	for _, e := range extractions {
		for _, s := range e.Signals {
			out = append(out, strings.ToLower(s))
		}
	}
	return out
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
