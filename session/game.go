package session

import (
	"sync"
	"time"

	"github.com/hupe1980/chatmesh/core"
)

// GameStatus is the lifecycle state of a game session. Transitions only move
// forward: waiting→active→completed, with cancelled reachable from either
// non-terminal state.
type GameStatus string

const (
	// GameWaiting means the session accepts joins and has not started.
	GameWaiting GameStatus = "waiting"
	// GameActive means rounds are being played; the participant list is fixed.
	GameActive GameStatus = "active"
	// GameCompleted is terminal.
	GameCompleted GameStatus = "completed"
	// GameCancelled is terminal.
	GameCancelled GameStatus = "cancelled"
)

// Player is one ordered participant of a game session.
type Player struct {
	Name   string `json:"name"`
	Score  int    `json:"score"`
	Active bool   `json:"active"`
}

// Bet is a wager placed by a participant during a session.
type Bet struct {
	Participant string    `json:"participant"`
	Amount      float64   `json:"amount"`
	Choice      string    `json:"choice"`
	At          time.Time `json:"at"`
}

// GameSession tracks one running game. The round counter never exceeds
// TotalRounds.
type GameSession struct {
	ID          string     `json:"id"`
	GameType    string     `json:"game_type"`
	Players     []Player   `json:"players"`
	Round       int        `json:"round"`
	TotalRounds int        `json:"total_rounds"`
	Bets        []Bet      `json:"bets"`
	Status      GameStatus `json:"status"`
	Created     time.Time  `json:"created"`
	Updated     time.Time  `json:"updated"`
}

// Scores returns the per-participant score map.
func (g *GameSession) Scores() map[string]int {
	scores := make(map[string]int, len(g.Players))
	for _, p := range g.Players {
		scores[p.Name] = p.Score
	}
	return scores
}

// terminal reports whether the session can no longer be mutated.
func (g *GameSession) terminal() bool {
	return g.Status == GameCompleted || g.Status == GameCancelled
}

// player returns the named player, or nil.
func (g *GameSession) player(name string) *Player {
	for i := range g.Players {
		if equalFold(g.Players[i].Name, name) {
			return &g.Players[i]
		}
	}
	return nil
}

// clone returns a deep copy safe for external use.
func (g *GameSession) clone() *GameSession {
	c := *g
	c.Players = append([]Player(nil), g.Players...)
	c.Bets = append([]Bet(nil), g.Bets...)
	return &c
}

// GameStore holds game sessions keyed by generated id. Owned exclusively by
// the gaming handler.
type GameStore struct {
	mu    sync.RWMutex
	games map[string]*GameSession
}

// NewGameStore constructs an empty game store.
func NewGameStore() *GameStore {
	return &GameStore{games: make(map[string]*GameSession)}
}

// Create starts a new session in the waiting state with round 1 and zero
// scores for every participant.
func (s *GameStore) Create(gameType string, participants []string, totalRounds int) (*GameSession, error) {
	if gameType == "" {
		return nil, core.NewValidationError("game_type", "must not be empty")
	}
	if totalRounds < 1 {
		return nil, core.NewValidationError("total_rounds", "must be at least 1")
	}
	members := normalizeParticipants(participants)
	if len(members) == 0 {
		return nil, core.NewValidationError("participants", "at least one participant required")
	}

	players := make([]Player, len(members))
	for i, m := range members {
		players[i] = Player{Name: m, Active: true}
	}

	now := time.Now().UTC()
	game := &GameSession{
		ID:          core.NewID(),
		GameType:    gameType,
		Players:     players,
		Round:       1,
		TotalRounds: totalRounds,
		Status:      GameWaiting,
		Created:     now,
		Updated:     now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[game.ID] = game
	return game.clone(), nil
}

// Get returns a clone of the session or a NotFoundError.
func (s *GameStore) Get(id string) (*GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	game, ok := s.games[id]
	if !ok {
		return nil, core.NewNotFoundError("game", id)
	}
	return game.clone(), nil
}

// Join adds a player to a waiting session. Joining after the game started is
// rejected; the participant set is fixed once active.
func (s *GameStore) Join(id, player string) (*GameSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[id]
	if !ok {
		return nil, core.NewNotFoundError("game", id)
	}
	if game.Status != GameWaiting {
		return nil, core.NewValidationError("status", "can only join while the game is waiting")
	}
	if game.player(player) != nil {
		return nil, core.NewValidationError("player", player+" already joined")
	}

	game.Players = append(game.Players, Player{Name: normalizeName(player), Active: true})
	game.Updated = time.Now().UTC()
	return game.clone(), nil
}

// Start transitions waiting→active. Only a participant may start the game.
func (s *GameStore) Start(id, actor string) (*GameSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[id]
	if !ok {
		return nil, core.NewNotFoundError("game", id)
	}
	if game.player(actor) == nil {
		return nil, core.NewValidationError("actor", "not a participant of this game")
	}
	if game.Status != GameWaiting {
		return nil, core.NewValidationError("status", "game is "+string(game.Status))
	}

	game.Status = GameActive
	game.Updated = time.Now().UTC()
	return game.clone(), nil
}

// RecordMove credits points to an active participant of an active session.
// A move after completion fails with a ValidationError and scores are
// unchanged.
func (s *GameStore) RecordMove(id, actor string, points int) (*GameSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[id]
	if !ok {
		return nil, core.NewNotFoundError("game", id)
	}
	if game.Status != GameActive {
		return nil, core.NewValidationError("status", "game is "+string(game.Status))
	}
	p := game.player(actor)
	if p == nil {
		return nil, core.NewValidationError("actor", "not a participant of this game")
	}
	if !p.Active {
		return nil, core.NewValidationError("actor", actor+" is no longer active")
	}

	p.Score += points
	game.Updated = time.Now().UTC()
	return game.clone(), nil
}

// AdvanceRound moves to the next round, or completes the session once the
// final round is done. The round counter never exceeds TotalRounds.
func (s *GameStore) AdvanceRound(id, actor string) (*GameSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[id]
	if !ok {
		return nil, core.NewNotFoundError("game", id)
	}
	if game.player(actor) == nil {
		return nil, core.NewValidationError("actor", "not a participant of this game")
	}
	if game.Status != GameActive {
		return nil, core.NewValidationError("status", "game is "+string(game.Status))
	}

	if game.Round >= game.TotalRounds {
		game.Status = GameCompleted
	} else {
		game.Round++
	}
	game.Updated = time.Now().UTC()
	return game.clone(), nil
}

// PlaceBet records a wager by a participant of a waiting or active session.
func (s *GameStore) PlaceBet(id, actor string, amount float64, choice string) (*GameSession, error) {
	if amount <= 0 {
		return nil, core.NewValidationError("amount", "must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[id]
	if !ok {
		return nil, core.NewNotFoundError("game", id)
	}
	if game.terminal() {
		return nil, core.NewValidationError("status", "game is "+string(game.Status))
	}
	if game.player(actor) == nil {
		return nil, core.NewValidationError("actor", "not a participant of this game")
	}

	game.Bets = append(game.Bets, Bet{
		Participant: normalizeName(actor),
		Amount:      roundCurrency(amount),
		Choice:      choice,
		At:          time.Now().UTC(),
	})
	game.Updated = time.Now().UTC()
	return game.clone(), nil
}

// Cancel moves a non-terminal session to cancelled.
func (s *GameStore) Cancel(id, actor string) (*GameSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[id]
	if !ok {
		return nil, core.NewNotFoundError("game", id)
	}
	if game.player(actor) == nil {
		return nil, core.NewValidationError("actor", "not a participant of this game")
	}
	if game.terminal() {
		return nil, core.NewValidationError("status", "game is already "+string(game.Status))
	}

	game.Status = GameCancelled
	game.Updated = time.Now().UTC()
	return game.clone(), nil
}

// PurgeTerminal removes completed and cancelled sessions, returning the count.
func (s *GameStore) PurgeTerminal() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, game := range s.games {
		if game.terminal() {
			delete(s.games, id)
			n++
		}
	}
	return n
}
