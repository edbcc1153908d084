package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customerpulse/pulse/internal/models"
)

func intPtr(v int) *int { return &v }

func withSignals(sentiment string, signals ...string) models.SignalExtraction {
	return models.SignalExtraction{Sentiment: sentiment, Signals: signals}
}

func TestSentimentScore(t *testing.T) {
	tests := []struct {
		name        string
		extractions []models.SignalExtraction
		want        int
	}{
		{"no extractions is neutral", nil, 50},
		{"all positive", []models.SignalExtraction{withSignals("positive"), withSignals("positive")}, 100},
		{"positive and negative", []models.SignalExtraction{withSignals("positive"), withSignals("negative")}, 50},
		{"unknown counts as neutral", []models.SignalExtraction{withSignals(""), withSignals("negative")}, 25},
		{"truncates", []models.SignalExtraction{withSignals("positive"), withSignals("negative"), withSignals("negative")}, 33},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SentimentScore(tt.extractions))
		})
	}
}

func TestEngagementScore(t *testing.T) {
	tests := []struct {
		name      string
		daysSince *int
		want      int
	}{
		{"never contacted", nil, 0},
		{"today", intPtr(0), 100},
		{"at interval", intPtr(14), 100},
		{"past interval", intPtr(15), 70},
		{"at double", intPtr(28), 70},
		{"at triple", intPtr(42), 40},
		{"beyond triple", intPtr(43), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EngagementScore(tt.daysSince, 14))
		})
	}
}

func TestRequestScore(t *testing.T) {
	tests := []struct {
		name    string
		signals []string
		want    int
	}{
		{"no signals", nil, 100},
		{"one bug", []string{"login_bug"}, 70},
		{"one feature request", []string{"feature_request"}, 85},
		{"bug and request in one signal", []string{"bug_request"}, 55},
		{"floors at zero", []string{"bug", "issue", "bug", "issue"}, 0},
		{"case insensitive", []string{"Critical_ISSUE"}, 70},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RequestScore([]models.SignalExtraction{withSignals("neutral", tt.signals...)}))
		})
	}
}

func TestRelationshipScore(t *testing.T) {
	tests := []struct {
		contacts int
		want     int
	}{
		{0, 0},
		{1, 50},
		{2, 100},
		{5, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RelationshipScore(tt.contacts), "contacts=%d", tt.contacts)
	}
}

func TestSatisfactionScore(t *testing.T) {
	tests := []struct {
		name        string
		extractions []models.SignalExtraction
		want        int
	}{
		{"no extractions", nil, 50},
		{"no signals falls back to sentiment", []models.SignalExtraction{withSignals("positive")}, 100},
		{"happy", []models.SignalExtraction{withSignals("neutral", "customer_happy")}, 100},
		{"unhappy is negative", []models.SignalExtraction{withSignals("neutral", "unhappy_with_support")}, 0},
		{"dissatisfied is negative", []models.SignalExtraction{withSignals("neutral", "dissatisfied")}, 0},
		{"mixed", []models.SignalExtraction{withSignals("neutral", "loves_dashboard", "frustrated_user", "pricing")}, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SatisfactionScore(tt.extractions))
		})
	}
}

func TestExpansionScore(t *testing.T) {
	tests := []struct {
		name        string
		extractions []models.SignalExtraction
		want        int
	}{
		{"no extractions", nil, 0},
		{"one upsell", []models.SignalExtraction{withSignals("neutral", "upsell_opportunity")}, 50},
		{"capped", []models.SignalExtraction{withSignals("neutral", "growth", "add-on", "expansion")}, 100},
		{"unrelated", []models.SignalExtraction{withSignals("neutral", "budget_risk")}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpansionScore(tt.extractions))
		})
	}
}

func TestPillarsOverall(t *testing.T) {
	tests := []struct {
		name    string
		pillars Pillars
		want    int
	}{
		{"all perfect", Pillars{100, 100, 100, 100, 100, 100}, 100},
		{"all zero", Pillars{}, 0},
		{"weighted", Pillars{Sentiment: 100, Engagement: 40, Request: 100, Relationship: 100, Satisfaction: 100, Expansion: 50}, 80},
		{"rounds down", Pillars{Sentiment: 50, Engagement: 70, Request: 85, Relationship: 50, Satisfaction: 50, Expansion: 0}, 51},
		{"exact seventy", Pillars{Sentiment: 100, Engagement: 100, Request: 100, Relationship: 100, Satisfaction: 0, Expansion: 0}, 70},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.pillars.Overall()
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, 0)
			assert.LessOrEqual(t, got, 100)
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{0, models.StatusAtRisk},
		{39, models.StatusAtRisk},
		{40, models.StatusWarning},
		{69, models.StatusWarning},
		{70, models.StatusHealthy},
		{100, models.StatusHealthy},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.score), "score=%d", tt.score)
	}
}

func TestTrend(t *testing.T) {
	tests := []struct {
		name       string
		current    int
		previous   *int
		wantChange *int
		wantDir    string
	}{
		{"first snapshot", 70, nil, nil, models.TrendNew},
		{"small rise is stable", 85, intPtr(82), intPtr(3), models.TrendStable},
		{"drop", 58, intPtr(65), intPtr(-7), models.TrendDown},
		{"rise", 80, intPtr(70), intPtr(10), models.TrendUp},
		{"boundary up", 75, intPtr(70), intPtr(5), models.TrendStable},
		{"boundary down", 65, intPtr(70), intPtr(-5), models.TrendStable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			change, dir := Trend(tt.current, tt.previous)
			assert.Equal(t, tt.wantDir, dir)
			if tt.wantChange == nil {
				assert.Nil(t, change)
				return
			}
			require.NotNil(t, change)
			assert.Equal(t, *tt.wantChange, *change)
		})
	}
}

func TestApplyDecay(t *testing.T) {
	tests := []struct {
		name        string
		score       int
		daysSince   *int
		wantScore   int
		wantDecayed bool
	}{
		{"no communication forces floor", 80, nil, DecayFloor, true},
		{"within interval", 80, intPtr(14), 80, false},
		{"one day overdue", 80, intPtr(15), 78, true},
		{"clamped at floor", 80, intPtr(40), 30, true},
		{"overdue score below floor is clamped", 25, intPtr(40), DecayFloor, true},
		{"low score one day overdue", 20, intPtr(15), DecayFloor, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, decayed := ApplyDecay(tt.score, tt.daysSince, 14)
			assert.Equal(t, tt.wantScore, got)
			assert.Equal(t, tt.wantDecayed, decayed)
		})
	}
}

func TestApplyDecayMonotonic(t *testing.T) {
	for _, base := range []int{0, 20, 30, 55, 90} {
		prev := 100
		for days := 15; days <= 120; days++ {
			got, decayed := ApplyDecay(base, intPtr(days), 14)
			assert.True(t, decayed, "base=%d days=%d", base, days)
			assert.LessOrEqual(t, got, prev, "base=%d days=%d", base, days)
			assert.GreaterOrEqual(t, got, DecayFloor, "base=%d days=%d", base, days)
			prev = got
		}
	}
}

func TestDaysSince(t *testing.T) {
	now := time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, DaysSince(now.Add(-23*time.Hour), now))
	assert.Equal(t, 1, DaysSince(now.Add(-25*time.Hour), now))
	assert.Equal(t, 40, DaysSince(now.AddDate(0, 0, -40), now))
	assert.Equal(t, 0, DaysSince(now.AddDate(0, 0, 3), now), "future dates count as today")
}
