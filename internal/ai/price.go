package ai

import (
	"regexp"
	"strconv"
	"strings"
)

// PriceSignal reports whether a message is about price and, if so, the amount the
// customer offered.
type PriceSignal struct {
	Detected bool
	Cue      string
	Offer    float64 // zero when no amount was found
}

// PriceDetector finds price negotiation in a message.
type PriceDetector interface {
	DetectPrice(message string) PriceSignal
}

var priceCues = []string{
	"how much", "price", "prices", "cost", "costs", "discount", "cheaper", "cheap",
	"last price", "best price", "final price", "reduce", "lower", "offer", "i'll pay",
	"i will pay", "i can pay", "can you do", "deal",
	"bei", "bei gani", "bei ya mwisho", "punguza", "ngapi", "pesa ngapi", "nitalipa",
	"nikupe", "shilingi", "rahisi", "ghali",
}

var (
	// KES 1,200 | Ksh.1200 | sh 500
	currencyBefore = regexp.MustCompile(`(?i)\b(?:kes|kshs?|sh)\.?\s*(\d[\d,]*(?:\.\d+)?)`)
	// 1,200/= | 1200 bob | 500 shillings | 2k
	currencyAfter = regexp.MustCompile(`(?i)\b(\d[\d,]*(?:\.\d+)?)\s*(/=|/-|kes\b|kshs?\b|bob\b|shillings?\b|shilingi\b|k\b)`)
	// nitalipa 500 | I'll pay 4500 | can you do 300
	offeredNumber = regexp.MustCompile(`(?i)(?:^|[^\pL'])(?:nitalipa|nikupe|nitakupa|ntakupea|nikulipe|i'll pay|i will pay|i can pay|i can do|can you do|will you take|would you take|how about)\s+(\d[\d,]*(?:\.\d+)?)\b(\s*[a-zA-Z%]+)?`)
)

// Bare numbers this long are phone or account numbers, not offers.
const maxOfferDigits = 8

// Words that make a bare number a quantity rather than an amount.
var quantityUnits = map[string]bool{
	"bag": true, "bags": true, "pc": true, "pcs": true, "piece": true, "pieces": true,
	"kg": true, "kgs": true, "kilo": true, "kilos": true, "g": true, "unit": true, "units": true,
	"item": true, "items": true, "box": true, "boxes": true, "crate": true, "crates": true,
	"packet": true, "packets": true, "litre": true, "litres": true, "liter": true, "liters": true,
	"l": true, "ml": true, "pair": true, "pairs": true, "day": true, "days": true,
	"hour": true, "hours": true, "hrs": true, "min": true, "minutes": true, "pm": true, "am": true,
	"vipande": true, "kipande": true, "mifuko": true, "gunia": true, "debe": true, "%": true,
	"percent": true, "m": true, "cm": true, "ft": true, "x": true,
}

// LexiconPriceDetector matches English and Swahili price cues and currency amounts.
type LexiconPriceDetector struct{}

func (LexiconPriceDetector) DetectPrice(message string) PriceSignal {
	lower := strings.ToLower(message)
	joined := " " + strings.Join(tokenizeKeepApostrophe(lower), " ") + " "

	var sig PriceSignal
	for _, cue := range priceCues {
		if strings.Contains(joined, " "+cue+" ") {
			sig.Detected = true
			sig.Cue = cue
			break
		}
	}

	if amount, ok := currencyAmount(message); ok {
		sig.Detected = true
		if sig.Cue == "" {
			sig.Cue = "currency"
		}
		sig.Offer = amount
		return sig
	}

	// a unitless number only counts when the customer is clearly offering it
	for _, m := range offeredNumber.FindAllStringSubmatch(message, -1) {
		unit := strings.ToLower(strings.TrimSpace(m[2]))
		if unit != "" && quantityUnits[unit] {
			continue
		}
		if v, ok := parseOffer(m[1]); ok {
			sig.Detected = true
			if sig.Cue == "" {
				sig.Cue = "offer"
			}
			sig.Offer = v
			break
		}
	}
	return sig
}

// QuotedPrice returns the last amount the assistant quoted in history, or zero when it
// never named a price.
func QuotedPrice(history []Message) float64 {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != "assistant" {
			continue
		}
		if v, ok := currencyAmount(history[i].Content); ok {
			return v
		}
	}
	return 0
}

func currencyAmount(message string) (float64, bool) {
	if m := currencyBefore.FindStringSubmatch(message); m != nil {
		return parseAmount(m[1])
	}
	if m := currencyAfter.FindStringSubmatch(message); m != nil {
		v, ok := parseAmount(m[1])
		if ok && strings.EqualFold(m[2], "k") {
			v *= 1000
		}
		return v, ok
	}
	return 0, false
}

func parseAmount(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func parseOffer(s string) (float64, bool) {
	digits := strings.ReplaceAll(s, ",", "")
	if whole, _, _ := strings.Cut(digits, "."); strings.HasPrefix(whole, "0") || len(whole) > maxOfferDigits {
		return 0, false
	}
	return parseAmount(digits)
}

func tokenizeKeepApostrophe(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(r == '\'' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127)
	})
}
