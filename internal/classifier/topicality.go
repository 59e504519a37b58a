package classifier

// fillerPhrases are generic replies that could be pasted under any post.
var fillerPhrases = []string{
	"thanks for sharing", "thank you for sharing", "thanks for posting",
	"this looks great", "looks great", "looks amazing", "looks awesome",
	"great job", "nice job", "great work", "nice work", "amazing work",
	"well done", "love this", "great post", "awesome post", "keep it up",
	"so cool", "very cool", "good luck",
}

// TopicalityCheck passes a reply that shares a keyword with the post. A
// reply with no shared keyword still passes unless it is generic filler.
type TopicalityCheck struct {
	filler [][]string
}

func NewTopicalityCheck() *TopicalityCheck {
	return &TopicalityCheck{filler: tokenizeAll(fillerPhrases)}
}

func (t *TopicalityCheck) Name() string { return "topicality" }

func (t *TopicalityCheck) Check(text string, c Context) bool {
	if Overlaps(text, c.PostText) {
		return true
	}
	return !t.IsFiller(text)
}

// IsFiller reports whether text contains a generic-filler phrase.
func (t *TopicalityCheck) IsFiller(text string) bool {
	return matchesAny(TokenizeText(text), t.filler)
}

// Overlaps reports whether a and b share at least one keyword.
func Overlaps(a, b string) bool {
	ka := Keywords(a)
	if len(ka) == 0 {
		return false
	}
	for k := range Keywords(b) {
		if _, ok := ka[k]; ok {
			return true
		}
	}
	return false
}
