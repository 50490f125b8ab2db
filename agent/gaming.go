package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/logging"
	"github.com/hupe1980/chatmesh/model"
	"github.com/hupe1980/chatmesh/session"
	"github.com/hupe1980/chatmesh/tool"
)

// defaultTotalRounds is used when a game is started without an explicit
// round count.
const defaultTotalRounds = 5

// GamingHandler owns the game session store: starting games, joins, moves,
// rounds, bets and scoreboards.
type GamingHandler struct {
	baseHandler
	games *session.GameStore

	mu       sync.Mutex
	lastGame map[string]string // conversation id -> most recent game id
}

// NewGamingHandler constructs the gaming handler with a fresh store.
func NewGamingHandler(completer model.Completer, logger logging.Logger) *GamingHandler {
	h := &GamingHandler{
		baseHandler: newBaseHandler(
			HandlerGaming,
			"Runs group games: starting sessions, joins, moves, rounds, bets and scores.",
			"You are the gaming assistant of a group chat. You run game sessions through your tools. Report scores exactly as the tools return them.",
			completer,
			logger,
		),
		games:    session.NewGameStore(),
		lastGame: make(map[string]string),
	}
	h.keywords = []string{"game", "play", "trivia", "score", "scores", "round", "bet", "wager", "join", "move"}
	h.hints = []hint{
		{keywords: []string{"split", "owes", "expense"}, handler: HandlerUtility},
		{keywords: []string{"price", "token", "transfer"}, handler: HandlerTrading},
		{keywords: []string{"app", "launch"}, handler: HandlerMiniApp},
	}
	h.registerTools()
	return h
}

// Games exposes the game store for the owning handler's tests.
func (h *GamingHandler) Games() *session.GameStore { return h.games }

// Handle covers the start-game, join and scoreboard fast paths, falling back
// to the language model otherwise.
func (h *GamingHandler) Handle(ctx context.Context, msg core.InboundMessage, agentCtx *core.AgentContext) (*core.AgentResponse, error) {
	content := strings.ToLower(msg.Content)

	if gameType, participants, ok := parseGameRequest(msg.Content); ok {
		args := map[string]any{
			"game_type":    gameType,
			"participants": toAnySlice(append(participants, strings.ToLower(msg.SenderID))),
		}
		result, err := h.callTool(ctx, agentCtx, "start_game", args)
		if err != nil {
			return h.respondOrFail(err)
		}
		game := result.(*session.GameSession)
		return core.NewResponse(h.name,
			fmt.Sprintf("Started a %s game with %s, waiting for everyone to be ready (game %s).",
				game.GameType, strings.Join(playerNames(game), ", "), game.ID)), nil
	}

	if strings.Contains(content, "score") {
		result, err := h.callTool(ctx, agentCtx, "get_scores", map[string]any{})
		if err != nil {
			return h.respondOrFail(err)
		}
		game := result.(*session.GameSession)
		return core.NewResponse(h.name, describeScores(game)), nil
	}

	if containsKeyword(content, "join") {
		result, err := h.callTool(ctx, agentCtx, "join_game", map[string]any{})
		if err != nil {
			return h.respondOrFail(err)
		}
		game := result.(*session.GameSession)
		return core.NewResponse(h.name,
			fmt.Sprintf("%s joined the %s game (%d players).",
				strings.ToLower(msg.SenderID), game.GameType, len(game.Players))), nil
	}

	return h.complete(ctx, msg, agentCtx)
}

func (h *GamingHandler) registerTools() {
	h.registerTool(tool.NewFunctionTool(
		"start_game",
		"Start a new game session in the waiting state with the given participants.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"game_type":    map[string]any{"type": "string", "description": "Game kind, e.g. trivia"},
				"participants": map[string]any{"type": "array", "description": "Participant names"},
				"total_rounds": map[string]any{"type": "integer", "description": "Number of rounds, default 5"},
			},
			"required": []string{"game_type"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			rounds := defaultTotalRounds
			if r, ok := args["total_rounds"].(float64); ok {
				rounds = int(r)
			}
			participants := toStringSlice(args["participants"])
			if len(participants) == 0 {
				participants = []string{tc.Caller.UserID}
			}
			game, err := h.games.Create(args["game_type"].(string), participants, rounds)
			if err != nil {
				return nil, err
			}
			h.remember(tc.Caller.ConversationID, game.ID)
			return game, nil
		},
	))

	h.registerTool(tool.NewFunctionTool(
		"join_game",
		"Join a waiting game session as the calling user.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"game_id": map[string]any{"type": "string", "description": "Game id; defaults to the conversation's latest game"},
			},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			id, err := h.resolveGameID(tc, args)
			if err != nil {
				return nil, err
			}
			return h.games.Join(id, tc.Caller.UserID)
		},
	))

	h.registerTool(tool.NewFunctionTool(
		"begin_game",
		"Transition a waiting game to active so moves can be recorded.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"game_id": map[string]any{"type": "string", "description": "Game id; defaults to the conversation's latest game"},
			},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			id, err := h.resolveGameID(tc, args)
			if err != nil {
				return nil, err
			}
			return h.games.Start(id, tc.Caller.UserID)
		},
	))

	h.registerTool(tool.NewFunctionTool(
		"record_move",
		"Credit points to the calling player in the current round.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"game_id": map[string]any{"type": "string", "description": "Game id; defaults to the conversation's latest game"},
				"points":  map[string]any{"type": "integer", "description": "Points to credit"},
			},
			"required": []string{"points"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			id, err := h.resolveGameID(tc, args)
			if err != nil {
				return nil, err
			}
			return h.games.RecordMove(id, tc.Caller.UserID, int(args["points"].(float64)))
		},
	))

	h.registerTool(tool.NewFunctionTool(
		"advance_round",
		"Advance to the next round, completing the game after the final round.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"game_id": map[string]any{"type": "string", "description": "Game id; defaults to the conversation's latest game"},
			},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			id, err := h.resolveGameID(tc, args)
			if err != nil {
				return nil, err
			}
			return h.games.AdvanceRound(id, tc.Caller.UserID)
		},
	))

	h.registerTool(tool.NewFunctionTool(
		"place_bet",
		"Place a wager on an outcome of the current game.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"game_id": map[string]any{"type": "string", "description": "Game id; defaults to the conversation's latest game"},
				"amount":  map[string]any{"type": "number"},
				"choice":  map[string]any{"type": "string"},
			},
			"required": []string{"amount", "choice"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			id, err := h.resolveGameID(tc, args)
			if err != nil {
				return nil, err
			}
			return h.games.PlaceBet(id, tc.Caller.UserID, args["amount"].(float64), args["choice"].(string))
		},
	))

	h.registerTool(tool.NewFunctionTool(
		"get_scores",
		"Get the scoreboard of a game session.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"game_id": map[string]any{"type": "string", "description": "Game id; defaults to the conversation's latest game"},
			},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			id, err := h.resolveGameID(tc, args)
			if err != nil {
				return nil, err
			}
			return h.games.Get(id)
		},
	))

	h.registerTool(tool.NewFunctionTool(
		"cancel_game",
		"Cancel a game session that has not finished.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"game_id": map[string]any{"type": "string", "description": "Game id; defaults to the conversation's latest game"},
			},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			id, err := h.resolveGameID(tc, args)
			if err != nil {
				return nil, err
			}
			return h.games.Cancel(id, tc.Caller.UserID)
		},
	))
}

// remember records the conversation's most recent game id.
func (h *GamingHandler) remember(conversationID, gameID string) {
	h.mu.Lock()
	h.lastGame[conversationID] = gameID
	h.mu.Unlock()
}

// resolveGameID returns the explicit game_id argument or the conversation's
// most recent game.
func (h *GamingHandler) resolveGameID(tc *core.ToolContext, args map[string]any) (string, error) {
	if id, ok := args["game_id"].(string); ok && id != "" {
		return id, nil
	}
	h.mu.Lock()
	id, ok := h.lastGame[tc.Caller.ConversationID]
	h.mu.Unlock()
	if !ok {
		return "", core.NewNotFoundError("game", "for this conversation")
	}
	return id, nil
}

// playerNames lists the session's player names in join order.
func playerNames(g *session.GameSession) []string {
	out := make([]string, len(g.Players))
	for i, p := range g.Players {
		out[i] = p.Name
	}
	return out
}

// describeScores renders a deterministic scoreboard, highest score first and
// names breaking ties.
func describeScores(g *session.GameSession) string {
	players := append([]session.Player(nil), g.Players...)
	sort.Slice(players, func(i, j int) bool {
		if players[i].Score != players[j].Score {
			return players[i].Score > players[j].Score
		}
		return players[i].Name < players[j].Name
	})
	parts := make([]string, len(players))
	for i, p := range players {
		parts[i] = fmt.Sprintf("%s %d", p.Name, p.Score)
	}
	return fmt.Sprintf("%s round %d/%d: %s.", g.GameType, g.Round, g.TotalRounds, strings.Join(parts, ", "))
}
