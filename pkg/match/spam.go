package match

import "strings"

// spamPhrases are promotional markers that disqualify a post outright.
var spamPhrases = []string{
	"buy cheap", "discount", "promo code", "referral link", "sign up bonus",
	"affiliate", "click here", "limited offer", "get paid", "earn money fast",
	"make money", "guaranteed profit", "trading signals", "pump and dump",
	"moonshot", "lambo", "[store]", "[selling]", "[ad]", "dm me",
	"telegram group", "buy now", "sale", "shop", "coupon", "deal",
}

// IsSpam reports whether text contains any promotional phrase.
// Case-insensitive; any single hit short-circuits.
func IsSpam(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range spamPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
