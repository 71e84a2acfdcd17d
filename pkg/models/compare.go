package models

import "time"

// Sample is one observed metric value for an agent.
type Sample struct {
	Agent      string    `json:"agent"`
	Metric     string    `json:"metric"`
	Value      float64   `json:"value"`
	TaskID     string    `json:"task_id,omitempty"`
	RecordedAt time.Time `json:"recorded_at,omitempty"`
}

// EloInitialRating is every agent's starting rating.
const EloInitialRating = 1500.0

// EloRating is an agent's rolling pairwise skill score.
type EloRating struct {
	Agent   string    `json:"agent"`
	Rating  float64   `json:"rating"`
	Peak    float64   `json:"peak"`
	Games   int       `json:"games"`
	Wins    int       `json:"wins"`
	Losses  int       `json:"losses"`
	Draws   int       `json:"draws"`
	History []float64 `json:"history,omitempty"`
}

// ComparisonOutcome is a pairwise result from the first agent's perspective.
type ComparisonOutcome string

const (
	OutcomeWin  ComparisonOutcome = "win"
	OutcomeLoss ComparisonOutcome = "loss"
	OutcomeDraw ComparisonOutcome = "draw"
)

// ComparisonResult reports a metric comparison between two agents.
type ComparisonResult struct {
	Metric      string            `json:"metric"`
	AgentA      string            `json:"agent_a"`
	AgentB      string            `json:"agent_b"`
	MeanA       float64           `json:"mean_a"`
	MeanB       float64           `json:"mean_b"`
	SamplesA    int               `json:"samples_a"`
	SamplesB    int               `json:"samples_b"`
	Outcome     ComparisonOutcome `json:"outcome"`
	PValue      float64           `json:"p_value"`
	Significant bool              `json:"significant"`
}

// MetricStanding places one metric of an agent within the population.
type MetricStanding struct {
	Metric     string  `json:"metric"`
	Mean       float64 `json:"mean"`
	Percentile float64 `json:"percentile"`
}

// AgentProfile summarizes an agent's strengths and weaknesses across the
// population, by percentile rank.
type AgentProfile struct {
	Agent      string           `json:"agent"`
	Standings  []MetricStanding `json:"standings"`
	Strengths  []string         `json:"strengths,omitempty"`
	Weaknesses []string         `json:"weaknesses,omitempty"`
}

// LeaderboardEntry is one row of the Elo leaderboard.
type LeaderboardEntry struct {
	Rank   int     `json:"rank"`
	Agent  string  `json:"agent"`
	Rating float64 `json:"rating"`
	Peak   float64 `json:"peak"`
	Games  int     `json:"games"`
	Wins   int     `json:"wins"`
	Losses int     `json:"losses"`
	Draws  int     `json:"draws"`
}
