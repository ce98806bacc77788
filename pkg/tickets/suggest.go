package tickets

import (
	"context"
	"regexp"
	"strings"
)

// Suggester proposes a team for a new ticket. Implementations return
// the canonical team name, a confidence in [0, 1] and an error only
// when the suggestion could not be computed at all.
type Suggester interface {
	Suggest(ctx context.Context, title, description string) (team string, confidence float64, err error)
}

// defaultThreshold is the minimum overlap a team must reach before the
// suggester routes to it instead of General.
const defaultThreshold = 0.3

// defaultVocabulary lists the keyword sets that signal each team, in
// suggestion-priority order. On an exact score tie the earlier team
// wins.
var defaultVocabulary = []struct {
	team     string
	keywords []string
}{
	{TeamHR, []string{
		"payroll", "leave", "benefits", "hiring", "policy", "pto", "salary", "employee",
	}},
	{TeamIT, []string{
		"laptop", "password", "software", "printer", "network", "access", "computer", "wifi", "system",
	}},
	{TeamHelpdesk, []string{
		"account", "order", "website", "login", "purchase", "service", "product", "billing", "faq", "contact", "support",
	}},
	{TeamLegal, []string{
		"contract", "nda", "compliance", "agreement", "lawsuit",
	}},
}

// stopwords are dropped before scoring so that function words do not
// dilute the overlap ratio.
var stopwords = wordSet([]string{
	"a", "an", "the", "and", "or", "but", "if", "then", "so",
	"is", "are", "was", "were", "be", "been", "being", "am",
	"to", "of", "in", "on", "at", "for", "with", "about", "from", "by", "as",
	"it", "its", "this", "that", "these", "those",
	"i", "my", "me", "we", "our", "you", "your", "he", "she", "they", "them", "their",
	"can", "cannot", "cant", "could", "will", "would", "should", "shall", "may", "might", "must",
	"do", "does", "did", "done", "not", "no", "dont", "doesnt", "didnt", "wont", "isnt",
	"have", "has", "had", "having", "get", "got", "getting",
	"how", "what", "when", "where", "why", "who", "whom", "which",
	"please", "need", "help", "hi", "hello", "thanks", "thank",
	"s", "t", "m", "re", "ve", "ll", "d",
})

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// KeywordSuggester routes tickets by lexical token overlap between the
// ticket text and each team's keyword set. The score for a team is the
// number of matched keywords divided by the size of the smaller of the
// two sets, so a short query with one strong hit and a long query with
// several hits both clear the threshold while a single incidental
// keyword in a long text does not.
type KeywordSuggester struct {
	teams     []teamKeywords
	threshold float64
}

type teamKeywords struct {
	team     string
	keywords map[string]struct{}
}

// NewKeywordSuggester builds a suggester over the default team
// vocabulary with the default confidence threshold.
func NewKeywordSuggester() *KeywordSuggester {
	ks := &KeywordSuggester{threshold: defaultThreshold}
	for _, entry := range defaultVocabulary {
		ks.teams = append(ks.teams, teamKeywords{
			team:     entry.team,
			keywords: wordSet(entry.keywords),
		})
	}
	return ks
}

// Suggest scores every team against the combined title and description
// and returns the best one, or General when no team clears the
// threshold. The returned confidence is the best score observed, so a
// fallback to General still reports how close the nearest team came.
// The lexical implementation never returns an error.
func (ks *KeywordSuggester) Suggest(_ context.Context, title, description string) (string, float64, error) {
	tokens := tokenize(title + " " + description)
	if len(tokens) == 0 {
		return TeamGeneral, 0, nil
	}

	best := TeamGeneral
	bestScore := 0.0
	for _, tk := range ks.teams {
		matched := 0
		for tok := range tokens {
			if _, ok := tk.keywords[tok]; ok {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		smaller := len(tokens)
		if len(tk.keywords) < smaller {
			smaller = len(tk.keywords)
		}
		score := float64(matched) / float64(smaller)
		if score > bestScore {
			best, bestScore = tk.team, score
		}
	}

	if bestScore < ks.threshold {
		return TeamGeneral, bestScore, nil
	}
	return best, bestScore, nil
}

// tokenize lowercases the text, splits it into alphanumeric runs and
// drops stopwords. The result is a set: repeated words count once.
func tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		if _, stop := stopwords[tok]; stop {
			continue
		}
		tokens[tok] = struct{}{}
	}
	return tokens
}

func wordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
