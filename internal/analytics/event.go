// Package analytics records usage events best-effort and summarises them for
// the operator dashboard. Recording never blocks or fails the caller.
package analytics

import "time"

type Kind string

const (
	KindGameCreated   Kind = "game_created"
	KindGamePlayed    Kind = "game_played"
	KindGameCompleted Kind = "game_completed"
	KindPageView      Kind = "page_view"
)

// Event is a flat union of every event shape; fields that do not apply to
// Kind are left zero.
type Event struct {
	Kind        Kind
	At          time.Time
	GameID      string
	CreatorName string
	IsWin       bool
	Attempts    int

	URL       string
	UserAgent string
	// ClientIP is only used to resolve Country and City, it is never stored.
	ClientIP string
	Country  string
	City     string
}

func GameCreated(gameID, creatorName string) Event {
	return Event{Kind: KindGameCreated, GameID: gameID, CreatorName: creatorName}
}

func GamePlayed(gameID string) Event {
	return Event{Kind: KindGamePlayed, GameID: gameID}
}

func GameCompleted(gameID string, isWin bool, attempts int) Event {
	return Event{Kind: KindGameCompleted, GameID: gameID, IsWin: isWin, Attempts: attempts}
}

func PageView(url, userAgent, clientIP string) Event {
	return Event{Kind: KindPageView, URL: url, UserAgent: userAgent, ClientIP: clientIP}
}
