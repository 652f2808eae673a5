package match

import (
	"regexp"
	"strings"
)

// Competitors is the fixed roster of competing exchange brands, grouped
// by market. Matching ignores the grouping; groups exist for reporting.
var Competitors = map[string][]string{
	"international": {
		"Binance", "Coinbase", "Kraken", "Crypto.com", "Gemini", "KuCoin",
		"OKX", "Bybit", "MEXC", "Uphold", "Bitfinex", "Bitmart", "Bitstamp",
	},
	"indian": {
		"CoinDCX", "Mudrex", "CoinSwitch", "ZebPay", "Unocoin", "Bitbns", "WazirX",
	},
	"dex": {
		"Uniswap", "PancakeSwap", "dYdX", "Curve Finance", "DODO", "KyberSwap",
	},
}

// localeTerms mark text as targeting the Indian market.
var localeTerms = []string{
	"india", "indian", "inr", "rupee", "delhi", "mumbai",
	"bangalore", "bengaluru", "kolkata", "chennai", "hyderabad",
}

// competitorPattern compiles a word-boundary-anchored alternation over
// all competitor names. Matching happens on folded text, so names are
// lowercased before escaping.
func competitorPattern() *regexp.Regexp {
	var escaped []string
	for _, group := range [...]string{"international", "indian", "dex"} {
		for _, name := range Competitors[group] {
			escaped = append(escaped, regexp.QuoteMeta(strings.ToLower(name)))
		}
	}
	return regexp.MustCompile(`\b(` + strings.Join(escaped, "|") + `)\b`)
}

func localePattern() *regexp.Regexp {
	return regexp.MustCompile(`\b(` + strings.Join(localeTerms, "|") + `)\b`)
}
