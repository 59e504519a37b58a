package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTokenizeText(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		text string
		out  []string
	}{
		{text: "", out: []string{}},
		{text: "Hello, world!", out: []string{"hello", "world"}},
		{text: "I don't know", out: []string{"i", "dont", "know"}},
		{text: "Crème brûlée slime", out: []string{"creme", "brulee", "slime"}},
		{text: "huh?!", out: []string{"huh"}},
	}

	for _, fix := range fixtures {
		assert.Equal(fix.out, TokenizeText(fix.text), fix.text)
	}
}

func TestKeywords(t *testing.T) {
	kw := Keywords("The best slime recipes for your kids")
	assert.Contains(t, kw, "slime")
	assert.Contains(t, kw, "recipe")
	assert.Contains(t, kw, "kid")
	assert.NotContains(t, kw, "the")
	assert.NotContains(t, kw, "for")
}

func TestSentimentCheck(t *testing.T) {
	assert := assert.New(t)
	check := NewSentimentCheck()

	fixtures := []struct {
		reply string
		pass  bool
	}{
		{reply: "That glossy finish on the slime came out really well", pass: true},
		{reply: "I'm not sure what this is supposed to be", pass: false},
		{reply: "Sorry, I can't help with that", pass: false},
		{reply: "This is a terrible idea", pass: false},
		{reply: "Um, okay then friend", pass: false},
		{reply: "Yummy looking recipe, saving it for later", pass: true},
		{reply: "Nice!", pass: false},
		{reply: "What glue did you use for this?", pass: false},
		{reply: "Love the colors, what glue did you use?", pass: true},
		{reply: "Wouldn't recommend borax for kids", pass: false},
	}

	for _, fix := range fixtures {
		assert.Equal(fix.pass, check.Check(fix.reply, Context{}), fix.reply)
	}
}

func TestTopicalityCheck(t *testing.T) {
	assert := assert.New(t)
	check := NewTopicalityCheck()

	fixtures := []struct {
		reply string
		post  string
		pass  bool
	}{
		{reply: "Thanks for sharing your work!", post: "My favourite slime recipes", pass: false},
		{reply: "This looks great!", post: "My favourite slime recipes", pass: false},
		{reply: "Thanks for sharing, that slime recipe is perfect", post: "My favourite slime recipes", pass: true},
		{reply: "Clear glue gives a much glossier result", post: "My favourite slime recipes", pass: true},
		{reply: "Looks great, the recipes are easy to follow", post: "Three slime recipes", pass: true},
	}

	for _, fix := range fixtures {
		assert.Equal(fix.pass, check.Check(fix.reply, Context{PostText: fix.post}), fix.reply)
	}
}

type fakeChat struct {
	answer string
	err    error
}

func (f fakeChat) CreateChatCompletion(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{
		{Message: openai.ChatCompletionMessage{Content: f.answer}},
	}}, nil
}

func TestModelCheck(t *testing.T) {
	assert := assert.New(t)
	c := Context{PostText: "My favourite slime recipes"}
	filler := "Thanks for sharing your work!"

	yes := NewModelCheck(fakeChat{answer: "Yes."}, "m", NewTopicalityCheck(), zap.NewNop())
	assert.True(yes.Check(filler, c))

	no := NewModelCheck(fakeChat{answer: "NO"}, "m", NewTopicalityCheck(), zap.NewNop())
	assert.False(no.Check("Clear glue gives a glossier result", c))

	down := NewModelCheck(fakeChat{err: errors.New("503")}, "m", NewTopicalityCheck(), zap.NewNop())
	assert.False(down.Check(filler, c))
	assert.Equal("model:topicality", down.Name())

	odd := NewModelCheck(fakeChat{answer: "maybe"}, "m", NewTopicalityCheck(), zap.NewNop())
	assert.True(odd.Check("Clear glue gives a glossier result", c))
}
