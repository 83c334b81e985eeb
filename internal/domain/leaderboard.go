package domain

import (
	"sort"
	"time"
)

// LeaderboardEntry is a snapshot-friendly view of a participant.
type LeaderboardEntry struct {
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
	Avatar        string `json:"avatar"`
	Score         int    `json:"score"`
	LastGain      int    `json:"lastGain"`
}

// Leaderboard captures the ordered scoreboard for a session.
type Leaderboard struct {
	SessionID string             `json:"sessionId"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// Rank projects participants into a ranking ordered by score descending,
// ties broken by join order. The sort is stable, so re-running the
// projection on unchanged scores yields an identical ordering.
func Rank(participants []Participant) []LeaderboardEntry {
	ordered := make([]Participant, len(participants))
	copy(ordered, participants)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Score != ordered[j].Score {
			return ordered[i].Score > ordered[j].Score
		}
		return ordered[i].JoinOrder < ordered[j].JoinOrder
	})

	entries := make([]LeaderboardEntry, 0, len(ordered))
	for _, p := range ordered {
		entries = append(entries, LeaderboardEntry{
			ParticipantID: p.ID,
			Name:          p.Name,
			Avatar:        p.Avatar,
			Score:         p.Score,
			LastGain:      p.LastGain,
		})
	}
	return entries
}

// Podium returns the top 3 entries for the finish screen.
func (l Leaderboard) Podium() []LeaderboardEntry {
	return l.top(3)
}

// Top10 returns the interim ranking shown between questions.
func (l Leaderboard) Top10() []LeaderboardEntry {
	return l.top(10)
}

func (l Leaderboard) top(n int) []LeaderboardEntry {
	if len(l.Entries) < n {
		n = len(l.Entries)
	}
	return l.Entries[:n]
}
