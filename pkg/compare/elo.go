package compare

import (
	"math"
	"sort"
	"sync"

	"github.com/praetorworks/praetor/pkg/models"
)

// K-factor schedule: provisional agents move faster.
const (
	eloKProvisional     = 32
	eloKEstablished     = 16
	eloProvisionalGames = 30
)

// LeaderboardCap bounds leaderboard snapshots.
const LeaderboardCap = 200

// EloStore holds every agent's rating and applies pairwise updates. Updates
// are serialized under the store lock, so two concurrent comparisons
// touching the same agent never interleave.
type EloStore struct {
	mu      sync.Mutex
	ratings map[string]*models.EloRating
}

// NewEloStore returns an empty store.
func NewEloStore() *EloStore {
	return &EloStore{ratings: make(map[string]*models.EloRating)}
}

func (s *EloStore) getLocked(agent string) *models.EloRating {
	r, ok := s.ratings[agent]
	if !ok {
		r = &models.EloRating{
			Agent:  agent,
			Rating: models.EloInitialRating,
			Peak:   models.EloInitialRating,
		}
		s.ratings[agent] = r
	}
	return r
}

// kFor returns the adaptive K-factor for an agent with the given number of
// games already played.
func kFor(games int) float64 {
	if games < eloProvisionalGames {
		return eloKProvisional
	}
	return eloKEstablished
}

// round2 rounds to two decimals, the precision ratings are stored at.
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// ExpectedScore returns A's expected score against B under the Elo model.
func ExpectedScore(ratingA, ratingB float64) float64 {
	return 1 / (1 + math.Pow(10, (ratingB-ratingA)/400))
}

// Update applies one pairwise outcome (from agentA's perspective) and
// returns the resulting ratings.
func (s *EloStore) Update(agentA, agentB string, outcome models.ComparisonOutcome) (models.EloRating, models.EloRating) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ra := s.getLocked(agentA)
	rb := s.getLocked(agentB)

	expectedA := ExpectedScore(ra.Rating, rb.Rating)
	expectedB := 1 - expectedA

	var scoreA, scoreB float64
	switch outcome {
	case models.OutcomeWin:
		scoreA, scoreB = 1, 0
		ra.Wins++
		rb.Losses++
	case models.OutcomeLoss:
		scoreA, scoreB = 0, 1
		ra.Losses++
		rb.Wins++
	default:
		scoreA, scoreB = 0.5, 0.5
		ra.Draws++
		rb.Draws++
	}

	// K is chosen from the games played before this comparison.
	ra.Rating = round2(ra.Rating + kFor(ra.Games)*(scoreA-expectedA))
	rb.Rating = round2(rb.Rating + kFor(rb.Games)*(scoreB-expectedB))

	ra.Games++
	rb.Games++
	if ra.Rating > ra.Peak {
		ra.Peak = ra.Rating
	}
	if rb.Rating > rb.Peak {
		rb.Peak = rb.Rating
	}
	ra.History = append(ra.History, ra.Rating)
	rb.History = append(rb.History, rb.Rating)

	return copyRating(ra), copyRating(rb)
}

// Rating returns a copy of one agent's rating; unknown agents report the
// initial rating with zero games.
func (s *EloStore) Rating(agent string) models.EloRating {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.ratings[agent]; ok {
		return copyRating(r)
	}
	return models.EloRating{Agent: agent, Rating: models.EloInitialRating, Peak: models.EloInitialRating}
}

// Leaderboard returns up to limit entries ordered by rating descending,
// ties broken by agent name. The cap is LeaderboardCap regardless of limit.
func (s *EloStore) Leaderboard(limit int) []models.LeaderboardEntry {
	if limit <= 0 || limit > LeaderboardCap {
		limit = LeaderboardCap
	}
	s.mu.Lock()
	snapshot := make([]models.EloRating, 0, len(s.ratings))
	for _, r := range s.ratings {
		snapshot = append(snapshot, copyRating(r))
	}
	s.mu.Unlock()

	sort.Slice(snapshot, func(i, j int) bool {
		if snapshot[i].Rating != snapshot[j].Rating {
			return snapshot[i].Rating > snapshot[j].Rating
		}
		return snapshot[i].Agent < snapshot[j].Agent
	})
	if len(snapshot) > limit {
		snapshot = snapshot[:limit]
	}
	out := make([]models.LeaderboardEntry, len(snapshot))
	for i, r := range snapshot {
		out[i] = models.LeaderboardEntry{
			Rank:   i + 1,
			Agent:  r.Agent,
			Rating: r.Rating,
			Peak:   r.Peak,
			Games:  r.Games,
			Wins:   r.Wins,
			Losses: r.Losses,
			Draws:  r.Draws,
		}
	}
	return out
}

func copyRating(r *models.EloRating) models.EloRating {
	out := *r
	out.History = append([]float64(nil), r.History...)
	return out
}
