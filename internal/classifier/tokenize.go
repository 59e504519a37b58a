package classifier

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	apostrophes   = strings.NewReplacer("'", "", "’", "", "‘", "")
	nonTokenChars = regexp.MustCompile(`[^\pL\pN\s]+`)
)

// TokenizeText lower-cases text, strips diacritics and splits on anything
// that is not a letter or digit. Apostrophes are dropped first so "don't"
// becomes the single token "dont".
func TokenizeText(text string) []string {
	// transform chains are stateful, build one per call
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	bare := strings.ToLower(nonTokenChars.ReplaceAllString(apostrophes.Replace(text), " "))
	folded, _, err := transform.String(fold, bare)
	if err != nil {
		folded = bare
	}
	return strings.Fields(folded)
}

// stem folds simple English plurals: "recipes" -> "recipe", "glasses" stays.
func stem(tok string) string {
	if len(tok) > 3 && strings.HasSuffix(tok, "s") && !strings.HasSuffix(tok, "ss") {
		return tok[:len(tok)-1]
	}
	return tok
}

// Keywords returns the meaningful, plural-folded terms of text: stopwords
// and tokens shorter than three characters are dropped.
func Keywords(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range TokenizeText(text) {
		if len(tok) < 3 {
			continue
		}
		if _, skip := stopwords[tok]; skip {
			continue
		}
		out[stem(tok)] = struct{}{}
	}
	return out
}

var stopwords = toSet(
	"the", "and", "for", "are", "but", "not", "you", "your", "yours", "all",
	"any", "can", "had", "has", "have", "her", "his", "him", "was", "were",
	"one", "our", "out", "who", "what", "when", "where", "why", "how", "with",
	"this", "that", "these", "those", "there", "their", "they", "them", "then",
	"than", "from", "into", "onto", "just", "very", "really", "also", "about",
	"some", "such", "only", "own", "same", "too", "will", "would", "could",
	"should", "been", "being", "did", "does", "doing", "done", "its", "itself",
	"myself", "yourself", "here", "more", "most", "much", "many", "other",
	"over", "under", "again", "each", "few", "both", "because", "while",
	"which", "whom", "yes", "yeah", "get", "got", "like", "make",
	"made", "thing", "things", "even", "still", "way", "well", "dont", "cant",
	"wont", "ive", "youre", "thats", "whats", "lol",
)

func toSet(words ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}
