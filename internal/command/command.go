// Package command parses the chat-message grammar traders use to submit
// order intents. Commands arrive in Persian shorthand; digits may be typed
// in either Persian or ASCII form.
package command

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goldpack/exchange-core/internal/types"
)

// Kind is the recognized command class.
type Kind int

const (
	KindUnknown Kind = iota
	KindSimple
	KindAdvance
	KindJoin
	KindCancelOne
	KindCancelAll
)

var (
	advancePattern = regexp.MustCompile(`^(\d+)\s*ب\s*(\d+)\s*(خپ|خب|فپ|فب|فمع|خمع|خش|فش)\s*(\d+)?$`)
	simplePattern  = regexp.MustCompile(`^(\d+)\s*(خف|فف|خ|ف)\s*(\d+)?$`)
	joinPattern    = regexp.MustCompile(`^(ب)?\s*(\d+)?$`)
)

// Simple-order side tokens. The bare tokens are today-dated; the doubled
// forms are tomorrow-dated and only valid inside the submission window.
const (
	tokenBuyToday     = "خ"
	tokenSellToday    = "ف"
	tokenBuyTomorrow  = "خف"
	tokenSellTomorrow = "فف"
	tokenCancel       = "ن"
	tokenJoin         = "ب"
)

// sellerRoleTokens are the advance-order role tokens that put the submitter
// on the seller leg; every other role token takes the buyer leg.
var sellerRoleTokens = map[string]bool{
	"فمع": true,
	"فپ":  true,
	"خش":  true,
	"خب":  true,
}

// ReplyTarget identifies the message a command replies to.
type ReplyTarget struct {
	MessageID int64
	TraderID  int64
	Text      string
}

// Command is one parsed order intent.
type Command struct {
	Kind Kind

	// Simple order fields.
	PriceDigits string
	Side        string
	ExtraDay    bool

	// Advance order fields.
	OpenDigits  string
	CloseDigits string
	SellerLeg   bool

	// Shared.
	Amount    int64
	HasAmount bool
}

// Parse classifies a normalized message into exactly one command kind.
// Join and cancel-one require a reply target; unrecognized text maps to
// KindUnknown and is ignored by the caller.
func Parse(raw string, hasReply bool) Command {
	text := Normalize(raw)
	if text == "" {
		return Command{Kind: KindUnknown}
	}

	if m := advancePattern.FindStringSubmatch(text); m != nil {
		cmd := Command{
			Kind:        KindAdvance,
			OpenDigits:  m[1],
			CloseDigits: m[2],
			SellerLeg:   sellerRoleTokens[m[3]],
			Amount:      1,
		}
		if m[4] != "" {
			cmd.Amount, cmd.HasAmount = mustParseAmount(m[4]), true
		}
		return cmd
	}

	if m := simplePattern.FindStringSubmatch(text); m != nil {
		cmd := Command{
			Kind:        KindSimple,
			PriceDigits: m[1],
			Amount:      1,
		}
		switch m[2] {
		case tokenBuyToday:
			cmd.Side = types.SideBuy
		case tokenSellToday:
			cmd.Side = types.SideSell
		case tokenBuyTomorrow:
			cmd.Side, cmd.ExtraDay = types.SideBuy, true
		case tokenSellTomorrow:
			cmd.Side, cmd.ExtraDay = types.SideSell, true
		}
		if m[3] != "" {
			cmd.Amount, cmd.HasAmount = mustParseAmount(m[3]), true
		}
		return cmd
	}

	if text == tokenCancel {
		if hasReply {
			return Command{Kind: KindCancelOne}
		}
		return Command{Kind: KindCancelAll}
	}

	if hasReply {
		if m := joinPattern.FindStringSubmatch(text); m != nil {
			cmd := Command{Kind: KindJoin}
			if m[2] != "" {
				cmd.Amount, cmd.HasAmount = mustParseAmount(m[2]), true
			}
			return cmd
		}
	}

	return Command{Kind: KindUnknown}
}

// Normalize trims the message and converts Persian digits to ASCII.
func Normalize(text string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(text) {
		if r >= '۰' && r <= '۹' {
			b.WriteRune('0' + (r - '۰'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsBareJoin reports whether the text is exactly the join token with no
// amount, which is how deferred joins are confirmed.
func IsBareJoin(text string) bool {
	return Normalize(text) == tokenJoin
}

// IsJoinShape reports whether the text has the join-command shape. A join
// message replying to another join message signals indirect addressing.
func IsJoinShape(text string) bool {
	return joinPattern.MatchString(Normalize(text))
}

// TableFor classifies an order message's text into the table its order row
// lives in, or "" when the text is not an order message.
func TableFor(text string) string {
	normalized := Normalize(text)
	switch {
	case advancePattern.MatchString(normalized):
		return types.TableAdvanceOrders
	case simplePattern.MatchString(normalized):
		return types.TableOrders
	default:
		return ""
	}
}

// ResolvePrice converts typed price digits into a full price. Three-digit
// shorthand is completed with the current base-price prefix; anything else
// parses as a full integer.
func ResolvePrice(digits string, basePrefix int64) (int64, error) {
	if len(digits) == 3 {
		full := fmt.Sprintf("%d%s", basePrefix, digits)
		price, err := strconv.ParseInt(full, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to resolve shorthand price %q: %w", digits, err)
		}
		return price, nil
	}
	price, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse price %q: %w", digits, err)
	}
	return price, nil
}

// mustParseAmount parses a digits-only amount already validated by the
// grammar. Overflowing values collapse to zero and fail volume checks later.
func mustParseAmount(digits string) int64 {
	amount, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0
	}
	return amount
}
