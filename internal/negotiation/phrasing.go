package negotiation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Phrasebook turns a numeric outcome into a customer-facing message. The variant is
// picked from the history length so replays of the same session read the same.
type Phrasebook struct {
	Currency string
}

func NewPhrasebook() *Phrasebook {
	return &Phrasebook{Currency: "KES"}
}

var (
	acceptLines = []string{
		"Deal! %[1]s it is. Asante sana, I'll get that ready for you.",
		"Sawa sawa, %[1]s works for us. Karibu tena!",
		"You drive a good bargain. We have a deal at %[1]s.",
	}
	farBelowLines = []string{
		"Ai, %[2]s is too low for us, rafiki. The best I can do is %[1]s.",
		"Pole, we can't go that low. I can give it to you for %[1]s.",
	}
	belowFloorLines = []string{
		"We're close! Let's meet at %[1]s, that's my last price.",
		"Tuko karibu. %[1]s and it's yours.",
	}
	midpointLines = []string{
		"Hmm, let's meet halfway at %[1]s.",
		"Let's be fair to each other, %[1]s?",
	}
	bumpLines = []string{
		"Almost there! Can you do %[1]s?",
		"Ongeza kidogo tu. %[1]s and we have a deal.",
	}
	nudgeLines = []string{
		"So close! %[1]s and it's yours.",
		"Just a little more, %[1]s?",
	}
)

// Phrase renders the outcome. turn is usually the negotiation history length.
func (p *Phrasebook) Phrase(out Outcome, turn int) string {
	var lines []string
	switch out.Bracket {
	case BracketAccept:
		lines = acceptLines
	case BracketFarBelowFloor:
		lines = farBelowLines
	case BracketBelowFloor:
		lines = belowFloorLines
	case BracketMidpoint:
		lines = midpointLines
	case BracketBump:
		lines = bumpLines
	default:
		lines = nudgeLines
	}
	if turn < 0 {
		turn = -turn
	}
	line := lines[turn%len(lines)]
	return fmt.Sprintf(line, p.Format(out.Price), p.Format(out.Offer))
}

// Format renders an amount as "KES 1,250". Amounts are rounded to whole shillings.
func (p *Phrasebook) Format(amount float64) string {
	whole := int64(math.Round(amount))
	neg := whole < 0
	if neg {
		whole = -whole
	}
	digits := strconv.FormatInt(whole, 10)

	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	out := b.String()
	if neg {
		out = "-" + out
	}
	return p.Currency + " " + out
}
