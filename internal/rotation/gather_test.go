package rotation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/subreddit-bot/internal/models"
	"go.uber.org/zap"
)

type fakeDiscovery struct {
	results map[string][]string
	fail    map[string]bool
	calls   []string
}

func (f *fakeDiscovery) SearchSubreddits(_ context.Context, keyword string) ([]string, error) {
	f.calls = append(f.calls, keyword)
	if f.fail[keyword] {
		return nil, errors.New("search unavailable")
	}
	return f.results[keyword], nil
}

func TestGatherPrefersFixedSubs(t *testing.T) {
	disc := &fakeDiscovery{}
	g := NewGatherer(disc, zap.NewNop())

	out, err := g.Gather(context.Background(), models.BotIdentity{
		ID:        "b",
		FixedSubs: []string{"slime", "r/Slime", "crafts"},
		Keywords:  []string{"ignored"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"crafts", "Slime"}, out)
	assert.Empty(t, disc.calls)
}

func TestGatherUnionIgnoresKeywordOrder(t *testing.T) {
	disc := &fakeDiscovery{results: map[string][]string{
		"slime": {"Slime", "SlimeRancher"},
		"diy":   {"DIY", "slime", "crafts"},
	}}
	g := NewGatherer(disc, zap.NewNop())

	a, err := g.Gather(context.Background(), models.BotIdentity{ID: "b", Keywords: []string{"slime", "diy"}})
	require.NoError(t, err)
	b, err := g.Gather(context.Background(), models.BotIdentity{ID: "b", Keywords: []string{"diy", "slime"}})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, []string{"crafts", "DIY", "Slime", "SlimeRancher"}, a)
}

func TestGatherConfigurationError(t *testing.T) {
	g := NewGatherer(&fakeDiscovery{}, zap.NewNop())
	_, err := g.Gather(context.Background(), models.BotIdentity{ID: "b", Keywords: []string{"  "}})
	assert.True(t, models.IsConfigurationError(err))

	g = NewGatherer(nil, zap.NewNop())
	_, err = g.Gather(context.Background(), models.BotIdentity{ID: "b", Keywords: []string{"slime"}})
	assert.True(t, models.IsConfigurationError(err))
}

func TestGatherPartialDiscoveryFailure(t *testing.T) {
	disc := &fakeDiscovery{
		results: map[string][]string{"diy": {"crafts"}},
		fail:    map[string]bool{"slime": true},
	}
	g := NewGatherer(disc, zap.NewNop())

	out, err := g.Gather(context.Background(), models.BotIdentity{ID: "b", Keywords: []string{"slime", "diy"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"crafts"}, out)

	disc.fail["diy"] = true
	_, err = g.Gather(context.Background(), models.BotIdentity{ID: "b", Keywords: []string{"slime", "diy"}})
	var ext *models.ExternalServiceError
	assert.ErrorAs(t, err, &ext)
}
