package agent

import (
	"regexp"
	"strconv"
	"strings"
)

// Fast-path parsers. These deliberately cover only the common phrasings seen
// in group chats; anything they miss falls through to the language model.

var (
	splitRe     = regexp.MustCompile(`(?i)split\s+\$?(\d+(?:\.\d+)?)\s+(?:between|among|with)\s+(.+)`)
	gameRe      = regexp.MustCompile(`(?i)(?:start|play)\s+(?:a\s+|an\s+)?([a-z][a-z0-9_-]*)(?:\s+game|\s+session|\s+match)?\s+with\s+(.+)`)
	appRe       = regexp.MustCompile(`(?i)(?:launch|open)\s+(?:the\s+)?([a-z][a-z0-9_-]*)(?:\s+app)?(?:\s+with\s+(.+))?$`)
	priceOfRe   = regexp.MustCompile(`(?i)(?:price|worth)\s+of\s+([a-z]{2,6})\b`)
	priceSuffRe = regexp.MustCompile(`(?i)\b([a-z]{2,6})\s+price\b`)
	transferRe  = regexp.MustCompile(`(?i)send\s+\$?(\d+(?:\.\d+)?)\s*([a-z]{2,6})?\s+to\s+(0x[0-9a-fA-F]+)`)
)

// priceStopwords keeps the suffix price form from capturing a filler word, as
// in "what's the price of eth" where "the" precedes "price".
var priceStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "its": true, "this": true,
	"that": true, "token": true, "coin": true, "current": true,
}

// parseSplitRequest extracts the total and participant list from phrasings
// like "let's split $120 between alice, bob, carol equally".
func parseSplitRequest(content string) (total float64, participants []string, ok bool) {
	m := splitRe.FindStringSubmatch(content)
	if m == nil {
		return 0, nil, false
	}
	total, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, nil, false
	}
	rest := strings.TrimSpace(m[2])
	rest = strings.TrimSuffix(strings.ToLower(rest), " equally")
	participants = parseNameList(rest)
	if len(participants) == 0 {
		return 0, nil, false
	}
	return total, participants, true
}

// parseGameRequest extracts the game type and participants from phrasings
// like "start trivia with alice and bob".
func parseGameRequest(content string) (gameType string, participants []string, ok bool) {
	m := gameRe.FindStringSubmatch(content)
	if m == nil {
		return "", nil, false
	}
	participants = parseNameList(m[2])
	if len(participants) == 0 {
		return "", nil, false
	}
	return strings.ToLower(m[1]), participants, true
}

// parseAppRequest extracts the app id and optional participants from
// phrasings like "launch the poll app with alice and bob".
func parseAppRequest(content string) (appID string, participants []string, ok bool) {
	m := appRe.FindStringSubmatch(content)
	if m == nil {
		return "", nil, false
	}
	if m[2] != "" {
		participants = parseNameList(m[2])
	}
	return strings.ToLower(m[1]), participants, true
}

// parsePriceRequest extracts a token symbol from phrasings like "price of
// eth" or "what's the ETH price". The "price of <sym>" form is tried first so
// "the price of eth" never resolves to "the".
func parsePriceRequest(content string) (symbol string, ok bool) {
	content = strings.ToLower(content)
	if m := priceOfRe.FindStringSubmatch(content); m != nil {
		return strings.ToUpper(m[1]), true
	}
	if m := priceSuffRe.FindStringSubmatch(content); m != nil && !priceStopwords[m[1]] {
		return strings.ToUpper(m[1]), true
	}
	return "", false
}

// parseTransferRequest extracts amount, asset and destination from phrasings
// like "send 50 USDC to 0xabc". The asset may be omitted.
func parseTransferRequest(content string) (amount float64, asset, to string, ok bool) {
	m := transferRe.FindStringSubmatch(content)
	if m == nil {
		return 0, "", "", false
	}
	amount, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, "", "", false
	}
	return amount, strings.ToUpper(m[2]), m[3], true
}

// parseNameList splits a free-form name list on commas and "and"/"&",
// trimming punctuation.
func parseNameList(s string) []string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " and ", ",")
	s = strings.ReplaceAll(s, "&", ",")
	var names []string
	for _, part := range strings.Split(s, ",") {
		name := strings.Trim(strings.TrimSpace(part), ".!?")
		if name == "" || name == "me" {
			continue
		}
		names = append(names, name)
	}
	return names
}
