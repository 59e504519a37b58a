package classifier

import "strings"

// negativeMarkers are phrases of confusion, dismissal or negativity. Each is
// matched as a whole token sequence, so "um" does not hit "yummy".
var negativeMarkers = []string{
	"no idea", "don't know", "not sure", "can't help", "sorry",
	"don't understand", "what are you talking about", "confused",
	"negative", "bad", "terrible", "awful", "hate", "dislike",
	"stupid", "dumb", "idiot", "fool", "wrong", "incorrect", "waste",
	"boring", "lame", "weird", "strange", "odd", "not good", "not great",
	"not worth", "wouldn't", "shouldn't", "can't stand", "annoying",
	"irritating", "frustrating", "wtf", "what the", "huh", "eh", "um", "uh",
}

// positiveMarkers let a question-style reply through.
var positiveMarkers = []string{"cool", "awesome", "nice", "love", "great"}

const minReplyWords = 3

// SentimentCheck rejects replies that sound confused, dismissive or
// negative, replies too short to say anything, and bare questions.
type SentimentCheck struct {
	markers  [][]string
	positive []string
	minWords int
}

func NewSentimentCheck() *SentimentCheck {
	return &SentimentCheck{
		markers:  tokenizeAll(negativeMarkers),
		positive: positiveMarkers,
		minWords: minReplyWords,
	}
}

func (s *SentimentCheck) Name() string { return "sentiment" }

func (s *SentimentCheck) Check(text string, _ Context) bool {
	tokens := TokenizeText(text)
	if len(tokens) < s.minWords {
		return false
	}
	if matchesAny(tokens, s.markers) {
		return false
	}
	if strings.Contains(text, "?") && !s.hasPositive(tokens) {
		return false
	}
	return true
}

// hasPositive accepts inflections ("loved", "nicely") by prefix.
func (s *SentimentCheck) hasPositive(tokens []string) bool {
	for _, tok := range tokens {
		for _, p := range s.positive {
			if strings.HasPrefix(tok, p) {
				return true
			}
		}
	}
	return false
}
