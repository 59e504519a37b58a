package reddit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/subreddit-bot/internal/models"
	"go.uber.org/zap"
)

type fakeReddit struct {
	t *testing.T

	mu         sync.Mutex
	tokenCalls int
	grants     []string
	forms      map[string]map[string]string
	commentErr bool
}

func (f *fakeReddit) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(f.t, ok)
		assert.Equal(f.t, "cid", user)
		assert.Equal(f.t, "secret", pass)
		require.NoError(f.t, r.ParseForm())

		f.mu.Lock()
		f.tokenCalls++
		f.grants = append(f.grants, r.PostForm.Get("grant_type"))
		f.mu.Unlock()

		fmt.Fprint(w, `{"access_token":"tok123","token_type":"bearer","expires_in":3600}`)
	})

	authed := func(fn http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer tok123" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			assert.NotEmpty(f.t, r.Header.Get("User-Agent"))
			fn(w, r)
		}
	}

	mux.HandleFunc("/subreddits/search", authed(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(f.t, "slime", r.URL.Query().Get("q"))
		fmt.Fprint(w, `{"kind":"Listing","data":{"children":[
			{"kind":"t5","data":{"display_name":"Slime","over18":false,"subscribers":250000}},
			{"kind":"t5","data":{"display_name":"SlimeNSFW","over18":true,"subscribers":90000}},
			{"kind":"t5","data":{"display_name":"tinyslime","over18":false,"subscribers":12}}
		]}}`)
	}))

	mux.HandleFunc("/r/Slime/rising", authed(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(f.t, "5", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `{"kind":"Listing","data":{"children":[
			{"kind":"t3","data":{"id":"rules","name":"t3_rules","subreddit":"Slime","title":"Rules","stickied":true}},
			{"kind":"t3","data":{"id":"abc","name":"t3_abc","subreddit":"Slime","title":"Too sticky","selftext":"help","author":"maker","created_utc":1719835200}}
		]}}`)
	}))

	mux.HandleFunc("/r/Slime/comments/abc", authed(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(f.t, "top", r.URL.Query().Get("sort"))
		fmt.Fprint(w, `[
			{"kind":"Listing","data":{"children":[{"kind":"t3","data":{"id":"abc"}}]}},
			{"kind":"Listing","data":{"children":[
				{"kind":"t1","data":{"id":"c1","name":"t1_c1","author":"a","body":"add activator"}},
				{"kind":"t1","data":{"id":"c2","name":"t1_c2","author":"[deleted]","body":"[deleted]"}},
				{"kind":"more","data":{}}
			]}}
		]`)
	}))

	mux.HandleFunc("/r/Broken/new", authed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))

	mux.HandleFunc("/api/v1/me", authed(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name":"slimebot"}`)
	}))

	form := func(path string) http.HandlerFunc {
		return authed(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(f.t, http.MethodPost, r.Method)
			require.NoError(f.t, r.ParseForm())
			got := map[string]string{}
			for k := range r.PostForm {
				got[k] = r.PostForm.Get(k)
			}
			f.mu.Lock()
			f.forms[path] = got
			fail := path == "/api/comment" && f.commentErr
			f.mu.Unlock()

			if fail {
				fmt.Fprint(w, `{"json":{"errors":[["RATELIMIT","you are doing that too much","ratelimit"]]}}`)
				return
			}
			fmt.Fprint(w, `{"json":{"errors":[]}}`)
		})
	}
	mux.HandleFunc("/api/comment", form("/api/comment"))
	mux.HandleFunc("/api/vote", form("/api/vote"))

	return mux
}

func newTestClient(t *testing.T, creds Credentials) (*Client, *fakeReddit) {
	f := &fakeReddit{t: t, forms: map[string]map[string]string{}}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	c := NewClient(creds, zap.NewNop(),
		WithURLs(srv.URL+"/api/v1/access_token", srv.URL),
		WithHTTPClient(srv.Client()))
	return c, f
}

var userCreds = Credentials{ClientID: "cid", ClientSecret: "secret", Username: "slimebot", Password: "pw"}

func TestSearchSubredditsFilters(t *testing.T) {
	c, f := newTestClient(t, userCreds)

	names, err := c.SearchSubreddits(context.Background(), "slime")
	require.NoError(t, err)
	assert.Equal(t, []string{"Slime"}, names)

	_, err = c.SearchSubreddits(context.Background(), "slime")
	require.NoError(t, err)
	assert.Equal(t, 1, f.tokenCalls, "token is cached")
	assert.Equal(t, []string{"password"}, f.grants)
}

func TestFetchRecentPosts(t *testing.T) {
	c, _ := newTestClient(t, userCreds)

	posts, err := c.FetchRecentPosts(context.Background(), "r/Slime", 5, "rising")
	require.NoError(t, err)
	require.Len(t, posts, 1)

	p := posts[0]
	assert.Equal(t, "abc", p.ID)
	assert.Equal(t, "t3_abc", p.FullName)
	assert.Equal(t, "Slime", p.Subreddit)
	assert.Equal(t, "Too sticky", p.Title)
	assert.Equal(t, []models.Comment{{ID: "c1", FullName: "t1_c1", Author: "a", Body: "add activator"}}, p.TopComments)
	assert.Equal(t, int64(1719835200), p.CreatedAt.Unix())
}

func TestFetchRecentPostsAPIError(t *testing.T) {
	c, _ := newTestClient(t, userCreds)

	_, err := c.FetchRecentPosts(context.Background(), "Broken", 5, "new")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
}

func TestActions(t *testing.T) {
	c, f := newTestClient(t, Credentials{ClientID: "cid", ClientSecret: "secret", RefreshToken: "rt"})
	ctx := context.Background()

	require.NoError(t, c.Authenticate(ctx))
	require.NoError(t, c.PostComment(ctx, models.CandidatePost{ID: "abc"}, "Try a little more activator"))
	require.NoError(t, c.Upvote(ctx, "t1_c1"))

	assert.Equal(t, []string{"refresh_token"}, f.grants)
	assert.Equal(t, map[string]string{"thing_id": "t3_abc", "text": "Try a little more activator", "api_type": "json"}, f.forms["/api/comment"])
	assert.Equal(t, map[string]string{"id": "t1_c1", "dir": "1"}, f.forms["/api/vote"])

	f.mu.Lock()
	f.commentErr = true
	f.mu.Unlock()
	err := c.PostComment(ctx, models.CandidatePost{ID: "abc", FullName: "t3_abc"}, "again")
	assert.ErrorContains(t, err, "RATELIMIT")
}

func TestAuthenticateNeedsUserGrant(t *testing.T) {
	c, f := newTestClient(t, Credentials{ClientID: "cid", ClientSecret: "secret"})

	err := c.Authenticate(context.Background())
	assert.True(t, models.IsConfigurationError(err))
	assert.Equal(t, 0, f.tokenCalls)

	names, err := c.SearchSubreddits(context.Background(), "slime")
	require.NoError(t, err)
	assert.Len(t, names, 1)
	assert.Equal(t, []string{"client_credentials"}, f.grants)
}
