package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntries() []Entry {
	return []Entry{
		{Term: "bitcoin", Volume: 90000},
		{Term: "crypto exchange", Volume: 50000},
		{Term: "wallet", Volume: 40000},
		{Term: "ethereum", Volume: 30000},
		{Term: "blockchain", Volume: 20000},
		{Term: "defi", Volume: 15000},
		{Term: "staking", Volume: 12000},
		{Term: "nft", Volume: 11000},
		{Term: "trading fees", Volume: 10000},
		{Term: "altcoin", Volume: 9000},
		// Below the primary cut.
		{Term: "cold storage", Volume: 5000},
		{Term: "seed phrase", Volume: 4000},
		{Term: "gas fees", Volume: 3000},
	}
}

func buildMatcher(t *testing.T, strategy Strategy) *Matcher {
	t.Helper()
	m, err := Build(testEntries(), Options{Strategy: strategy})
	require.NoError(t, err)
	return m
}

func TestBuild_TierSplit(t *testing.T) {
	m := buildMatcher(t, StrategyAutomaton)

	primary := m.PrimaryTerms()
	secondary := m.SecondaryTerms()

	assert.Len(t, primary, 10)
	assert.Len(t, secondary, 3)
	assert.Equal(t, "bitcoin", primary[0], "highest volume ranks first")
	assert.Equal(t, "cold storage", secondary[0])
}

func TestBuild_NormalizesAndDedupes(t *testing.T) {
	m, err := Build([]Entry{
		{Term: "  Bitcoin  ", Volume: 100},
		{Term: "bitcoin", Volume: 500},
		{Term: "BITCOIN", Volume: 300},
		{Term: "nan", Volume: 999},
		{Term: "", Volume: 999},
		{Term: "x", Volume: 999},
		{Term: "wallet", Volume: 50},
	}, Options{})
	require.NoError(t, err)

	terms := m.PrimaryTerms()
	assert.Equal(t, []string{"bitcoin", "wallet"}, terms,
		"duplicates collapse to one entry with the max volume; junk rows drop")
}

func TestBuild_NoUsableKeywords(t *testing.T) {
	_, err := Build([]Entry{{Term: "nan"}, {Term: ""}}, Options{})
	assert.Error(t, err)
}

func TestFindMatches_EmptyText(t *testing.T) {
	m := buildMatcher(t, StrategyAutomaton)

	res := m.FindMatches("   ")
	assert.Empty(t, res.Keywords)
	assert.Empty(t, res.Competitors)
	assert.Equal(t, TierSecondary, res.Priority)
	assert.False(t, res.LocaleFlag)
}

func TestFindMatches_CaseInsensitive(t *testing.T) {
	m := buildMatcher(t, StrategyAutomaton)

	res := m.FindMatches("BITCOIN and Ethereum are up today")
	assert.Equal(t, []string{"bitcoin", "ethereum"}, res.Keywords)
	assert.Equal(t, TierPrimary, res.Priority)
}

func TestFindMatches_RankOrder(t *testing.T) {
	m := buildMatcher(t, StrategyAutomaton)

	// Mention order differs from rank order; the result is ranked.
	res := m.FindMatches("gas fees on ethereum vs a bitcoin wallet")
	assert.Equal(t, []string{"bitcoin", "wallet", "ethereum", "gas fees"}, res.Keywords)
	assert.Equal(t, TierPrimary, res.Priority)
}

func TestFindMatches_SecondaryOnly(t *testing.T) {
	m := buildMatcher(t, StrategyAutomaton)

	res := m.FindMatches("where do you keep a seed phrase safely")
	assert.Equal(t, []string{"seed phrase"}, res.Keywords)
	assert.Equal(t, TierSecondary, res.Priority)
}

func TestFindMatches_ShortKeywordBoundary(t *testing.T) {
	m, err := Build([]Entry{
		{Term: "nft", Volume: 100},
		{Term: "inr", Volume: 50},
	}, Options{})
	require.NoError(t, err)

	assert.Empty(t, m.FindMatches("coinranking lists updated").Keywords,
		"inr inside coinranking must not match")
	assert.Empty(t, m.FindMatches("thenftables release").Keywords)

	res := m.FindMatches("bought an NFT for 500 INR")
	assert.Equal(t, []string{"nft", "inr"}, res.Keywords)

	res = m.FindMatches("price (inr) listed")
	assert.Equal(t, []string{"inr"}, res.Keywords, "punctuation counts as a boundary")
}

func TestFindMatches_ShortKeywordInsideWord(t *testing.T) {
	for _, strategy := range []Strategy{StrategyAutomaton, StrategyScan} {
		m, err := Build([]Entry{{Term: "api", Volume: 100}}, Options{Strategy: strategy})
		require.NoError(t, err)

		assert.Empty(t, m.FindMatches("rapid growth this quarter").Keywords,
			"%s: api must not match inside rapid", strategy)
		assert.Equal(t, []string{"api"}, m.FindMatches("the api is down").Keywords,
			"%s: standalone api matches", strategy)
	}
}

func TestFindMatches_PriorityEscalation(t *testing.T) {
	m, err := Build([]Entry{
		{Term: "bitcoin", Volume: 100},
		{Term: "wallet", Volume: 50},
	}, Options{PrimaryCount: 1})
	require.NoError(t, err)

	res := m.FindMatches("bitcoin wallet guide")
	assert.Equal(t, []string{"bitcoin", "wallet"}, res.Keywords)
	assert.Equal(t, TierPrimary, res.Priority,
		"one primary hit escalates the whole result")

	res = m.FindMatches("wallet guide")
	assert.Equal(t, TierSecondary, res.Priority)
}

func TestFindMatches_Competitors(t *testing.T) {
	m := buildMatcher(t, StrategyAutomaton)

	res := m.FindMatches("Should I move from Binance to CoinDCX? Binance fees hurt")
	assert.Equal(t, []string{"binance", "coindcx"}, res.Competitors,
		"distinct competitors in first-occurrence order")
}

func TestFindMatches_LocaleFlag(t *testing.T) {
	m := buildMatcher(t, StrategyAutomaton)

	res := m.FindMatches("Best bitcoin wallet in India")
	assert.Equal(t, []string{"bitcoin", "wallet"}, res.Keywords)
	assert.Equal(t, TierPrimary, res.Priority)
	assert.True(t, res.LocaleFlag)

	res = m.FindMatches("bitcoin wallet comparison")
	assert.False(t, res.LocaleFlag)
}

func TestFindMatches_CompetitorOnlyText(t *testing.T) {
	m := buildMatcher(t, StrategyAutomaton)

	res := m.FindMatches("Is WazirX safe these days?")
	assert.Empty(t, res.Keywords)
	assert.Equal(t, []string{"wazirx"}, res.Competitors)
	assert.Equal(t, TierSecondary, res.Priority)
}

func TestFindMatches_Deterministic(t *testing.T) {
	m := buildMatcher(t, StrategyAutomaton)

	text := "bitcoin wallet ethereum defi staking on Binance in Mumbai"
	first := m.FindMatches(text)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, m.FindMatches(text))
	}
}

func TestStrategies_Equivalent(t *testing.T) {
	auto := buildMatcher(t, StrategyAutomaton)
	scan := buildMatcher(t, StrategyScan)

	texts := []string{
		"",
		"nothing relevant here",
		"bitcoin bitcoin bitcoin",
		"an altcoin and a blockchain walk into a defi bar",
		"NFT drop priced in INR, trading fees waived",
		"thenftables release is not about tokens",
		"cold storage or a hot wallet for ethereum staking?",
		"Binance vs Uniswap vs CoinDCX in Bangalore",
		"seed phrase backup with gas fees explained",
	}
	for _, text := range texts {
		assert.Equal(t, scan.FindMatches(text), auto.FindMatches(text), "text: %q", text)
	}
}

func TestAutomaton_OverlappingPatterns(t *testing.T) {
	m, err := Build([]Entry{
		{Term: "bitcoin cash", Volume: 100},
		{Term: "bitcoin", Volume: 90},
		{Term: "coin", Volume: 80},
	}, Options{Strategy: StrategyAutomaton})
	require.NoError(t, err)

	res := m.FindMatches("is bitcoin cash still a thing")
	assert.Equal(t, []string{"bitcoin cash", "bitcoin", "coin"}, res.Keywords,
		"suffix and substring patterns all surface")
}

func TestIsSpam(t *testing.T) {
	assert.True(t, IsSpam("[SELLING] cheap BTC accounts"))
	assert.True(t, IsSpam("join my Telegram group for signals"))
	assert.True(t, IsSpam("BUY NOW before it moons"))
	assert.False(t, IsSpam("bitcoin news today"))
	assert.False(t, IsSpam("how do trading fees compare across exchanges"))
}
