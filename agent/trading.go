package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/chatmesh/chain"
	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/feed"
	"github.com/hupe1980/chatmesh/logging"
	"github.com/hupe1980/chatmesh/model"
	"github.com/hupe1980/chatmesh/tool"
)

// TradingHandler answers market questions and performs wallet actions
// through the chain actor. Every chain call is bounded by a timeout and a
// failure never leaves partial state behind.
type TradingHandler struct {
	baseHandler
	actor  chain.Actor
	quoter feed.Quoter

	chainTimeout time.Duration
}

// NewTradingHandler constructs the trading handler.
func NewTradingHandler(completer model.Completer, actor chain.Actor, quoter feed.Quoter, logger logging.Logger) *TradingHandler {
	h := &TradingHandler{
		baseHandler: newBaseHandler(
			HandlerTrading,
			"Answers token price questions and executes transfers, balance checks and token deployments.",
			"You are the trading assistant of a group chat. You answer market questions and execute wallet actions through your tools. Never invent prices; always use the price tool.",
			completer,
			logger,
		),
		actor:        actor,
		quoter:       quoter,
		chainTimeout: 10 * time.Second,
	}
	h.keywords = []string{"price", "trade", "swap", "buy", "sell", "token", "transfer", "send", "balance", "deploy", "wallet", "eth", "btc", "usdc"}
	h.hints = []hint{
		{keywords: []string{"split", "owes", "expense"}, handler: HandlerUtility},
		{keywords: []string{"game", "play", "bet"}, handler: HandlerGaming},
		{keywords: []string{"news", "feed"}, handler: HandlerSocial},
	}
	h.registerTools()
	return h
}

// Handle answers price lookups directly and defers everything else to the
// language model with the wallet tools bound.
func (h *TradingHandler) Handle(ctx context.Context, msg core.InboundMessage, agentCtx *core.AgentContext) (*core.AgentResponse, error) {
	if symbol, ok := parsePriceRequest(msg.Content); ok {
		result, err := h.callTool(ctx, agentCtx, "get_token_price", map[string]any{"symbol": symbol})
		if err != nil {
			return h.respondOrFail(err)
		}
		quote := result.(feed.Quote)
		return core.NewResponse(h.name,
			fmt.Sprintf("%s is at $%.2f.", quote.Symbol, quote.PriceUSD)), nil
	}

	if amount, asset, to, ok := parseTransferRequest(msg.Content); ok {
		if asset == "" {
			asset = "USDC"
		}
		result, err := h.callTool(ctx, agentCtx, "transfer_funds", map[string]any{"to": to, "amount": amount, "asset": asset})
		if err != nil {
			return h.respondOrFail(err)
		}
		tx := result.(chain.TxRef)
		resp := core.NewResponse(h.name,
			fmt.Sprintf("Sent %.2f %s to %s (tx %s).", amount, asset, to, tx))
		resp.AddAction(core.ActionTransaction, map[string]any{
			"to": to, "amount": amount, "asset": asset, "tx": string(tx),
		})
		return resp, nil
	}

	return h.complete(ctx, msg, agentCtx)
}

func (h *TradingHandler) registerTools() {
	h.registerTool(tool.NewFunctionTool(
		"get_token_price",
		"Get the current USD price of a token symbol.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"symbol": map[string]any{"type": "string", "description": "Token symbol, e.g. ETH"},
			},
			"required": []string{"symbol"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			symbol := strings.ToUpper(args["symbol"].(string))
			cctx, cancel := context.WithTimeout(tc.Context, h.chainTimeout)
			defer cancel()
			quote, err := h.quoter.Quote(cctx, symbol)
			if err != nil {
				return nil, h.externalError("quote", err)
			}
			return quote, nil
		},
	))

	h.registerTool(tool.NewFunctionTool(
		"get_balance",
		"Get the asset balance of a wallet address.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"address": map[string]any{"type": "string", "description": "Wallet address"},
			},
			"required": []string{"address"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			cctx, cancel := context.WithTimeout(tc.Context, h.chainTimeout)
			defer cancel()
			balance, err := h.actor.Balance(cctx, args["address"].(string))
			if err != nil {
				return nil, h.externalError("balance", err)
			}
			return balance, nil
		},
	))

	h.registerTool(tool.NewFunctionTool(
		"transfer_funds",
		"Transfer an amount of an asset to a destination address.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"to":     map[string]any{"type": "string", "description": "Destination address"},
				"amount": map[string]any{"type": "number", "description": "Amount to transfer"},
				"asset":  map[string]any{"type": "string", "description": "Asset symbol, e.g. USDC"},
			},
			"required": []string{"to", "amount"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			to := args["to"].(string)
			amount := args["amount"].(float64)
			asset, _ := args["asset"].(string)
			if asset == "" {
				asset = "USDC"
			}

			cctx, cancel := context.WithTimeout(tc.Context, h.chainTimeout)
			defer cancel()
			txRef, err := h.actor.Transfer(cctx, to, amount, asset)
			if err != nil {
				return nil, h.externalError("transfer", err)
			}
			h.logger.Info("trading.transfer", "to", to, "amount", amount, "asset", asset, "tx", string(txRef))
			return txRef, nil
		},
	))

	h.registerTool(tool.NewFunctionTool(
		"swap_tokens",
		"Swap an amount of one token for another at the current rate.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"from_asset": map[string]any{"type": "string", "description": "Asset to sell, e.g. ETH"},
				"to_asset":   map[string]any{"type": "string", "description": "Asset to buy, e.g. USDC"},
				"amount":     map[string]any{"type": "number", "description": "Amount of from_asset to swap"},
			},
			"required": []string{"from_asset", "to_asset", "amount"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			fromAsset := strings.ToUpper(args["from_asset"].(string))
			toAsset := strings.ToUpper(args["to_asset"].(string))
			amount := args["amount"].(float64)

			cctx, cancel := context.WithTimeout(tc.Context, h.chainTimeout)
			defer cancel()
			received, txRef, err := h.actor.Swap(cctx, fromAsset, toAsset, amount)
			if err != nil {
				return nil, h.externalError("swap", err)
			}
			h.logger.Info("trading.swap", "from", fromAsset, "to", toAsset, "amount", amount, "received", received, "tx", string(txRef))
			return map[string]any{"received": received, "tx": string(txRef)}, nil
		},
	))

	h.registerTool(tool.NewFunctionTool(
		"deploy_token",
		"Deploy a new token contract with the given name, symbol and supply.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":   map[string]any{"type": "string"},
				"symbol": map[string]any{"type": "string"},
				"supply": map[string]any{"type": "number"},
			},
			"required": []string{"name", "symbol", "supply"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			cctx, cancel := context.WithTimeout(tc.Context, h.chainTimeout)
			defer cancel()
			ref, err := h.actor.DeployToken(cctx, args["name"].(string), args["symbol"].(string), args["supply"].(float64))
			if err != nil {
				return nil, h.externalError("deploy_token", err)
			}
			return ref, nil
		},
	))
}

// externalError maps a chain or quote failure to the external-action error
// class, naming a timeout explicitly when that is the cause.
func (h *TradingHandler) externalError(action string, err error) error {
	reason := "the " + action + " could not be completed"
	var ae *chain.ActionError
	if errors.As(err, &ae) {
		switch ae.Code {
		case chain.ErrInsufficientFunds:
			reason = "insufficient funds"
		case chain.ErrInvalidAddress:
			reason = "the destination address is invalid"
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		reason = "the " + action + " timed out"
	}
	return core.NewExternalActionError(action, reason, err)
}
