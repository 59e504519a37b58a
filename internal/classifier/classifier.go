package classifier

// Context carries what a check may compare the reply against.
type Context struct {
	PostText string
}

// Check is one replaceable reply heuristic. Check reports whether text
// passes; it must not have side effects.
type Check interface {
	Name() string
	Check(text string, c Context) bool
}

// CheckFunc adapts a plain function to Check.
type CheckFunc struct {
	Label string
	Fn    func(text string, c Context) bool
}

func (f CheckFunc) Name() string { return f.Label }

func (f CheckFunc) Check(text string, c Context) bool { return f.Fn(text, c) }

// containsPhrase reports whether phrase occurs as a run of consecutive
// tokens in tokens. Both sides must come from TokenizeText.
func containsPhrase(tokens, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(tokens) {
		return false
	}
outer:
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		for j, p := range phrase {
			if tokens[i+j] != p {
				continue outer
			}
		}
		return true
	}
	return false
}

func tokenizeAll(phrases []string) [][]string {
	out := make([][]string, 0, len(phrases))
	for _, p := range phrases {
		if toks := TokenizeText(p); len(toks) > 0 {
			out = append(out, toks)
		}
	}
	return out
}

func matchesAny(tokens []string, phrases [][]string) bool {
	for _, p := range phrases {
		if containsPhrase(tokens, p) {
			return true
		}
	}
	return false
}
