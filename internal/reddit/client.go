package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xaenox/subreddit-bot/internal/models"
	"go.uber.org/zap"
)

const (
	DefaultAuthURL   = "https://www.reddit.com/api/v1/access_token"
	DefaultAPIURL    = "https://oauth.reddit.com"
	DefaultUserAgent = "go:subreddit-bot:v1 (automated replies)"

	// MinSubscribers keeps discovery away from tiny communities.
	MinSubscribers = 1000

	searchLimit    = 5
	tokenRefreshIn = 5 * time.Minute
)

// Credentials is one Reddit account plus the script app used to reach it.
// Without Username/Password or RefreshToken the client is read-only.
type Credentials struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	RefreshToken string `mapstructure:"refresh_token"`
	UserAgent    string `mapstructure:"user_agent"`
}

// CanAct reports whether the credentials carry a user grant.
func (c Credentials) CanAct() bool {
	return c.RefreshToken != "" || (c.Username != "" && c.Password != "")
}

// APIError is a non-2xx answer from Reddit.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("reddit: status %d: %s", e.Status, e.Body)
}

type Option func(*Client)

// WithURLs points the client at another server, for tests.
func WithURLs(authURL, apiURL string) Option {
	return func(c *Client) {
		c.authURL = authURL
		c.apiURL = strings.TrimRight(apiURL, "/")
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// Client talks to the Reddit OAuth API for one account. It implements the
// bot's Discovery, PostSource and ActionSink.
type Client struct {
	creds   Credentials
	http    *http.Client
	authURL string
	apiURL  string
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewClient(creds Credentials, logger *zap.Logger, opts ...Option) *Client {
	if creds.UserAgent == "" {
		creds.UserAgent = DefaultUserAgent
	}
	c := &Client{
		creds:   creds,
		authURL: DefaultAuthURL,
		apiURL:  DefaultAPIURL,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = NewHTTPClient(logger, 3, 20*time.Second)
	}
	return c
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Add(tokenRefreshIn).Before(c.expires) {
		return c.token, nil
	}

	form := url.Values{}
	switch {
	case c.creds.RefreshToken != "":
		form.Set("grant_type", "refresh_token")
		form.Set("refresh_token", c.creds.RefreshToken)
	case c.creds.Username != "" && c.creds.Password != "":
		form.Set("grant_type", "password")
		form.Set("username", c.creds.Username)
		form.Set("password", c.creds.Password)
	default:
		form.Set("grant_type", "client_credentials")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(c.creds.ClientID, c.creds.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.creds.UserAgent)

	var tok tokenResponse
	if err := c.send(req, &tok); err != nil {
		return "", fmt.Errorf("request access token: %w", err)
	}
	if tok.Error != "" {
		return "", fmt.Errorf("request access token: %s", tok.Error)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("request access token: empty token")
	}

	c.token = tok.AccessToken
	c.expires = c.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	c.logger.Debug("Obtained Reddit token",
		zap.String("grant", form.Get("grant_type")),
		zap.Time("expires_at", c.expires))
	return c.token, nil
}

// call performs an authenticated API request. form, when non-nil, is sent
// as a urlencoded POST body.
func (c *Client) call(ctx context.Context, method, path string, query, form url.Values, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	u := c.apiURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.creds.UserAgent)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Body: truncate(string(raw), 300)}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}

// SearchSubreddits returns the names of safe-for-work subreddits with at
// least MinSubscribers members that match keyword.
func (c *Client) SearchSubreddits(ctx context.Context, keyword string) ([]string, error) {
	q := url.Values{"q": {keyword}, "limit": {strconv.Itoa(searchLimit)}, "raw_json": {"1"}}

	var l listing
	if err := c.call(ctx, http.MethodGet, "/subreddits/search", q, nil, &l); err != nil {
		return nil, fmt.Errorf("search subreddits %q: %w", keyword, err)
	}

	var out []string
	for _, child := range l.Data.Children {
		if child.Kind != "t5" {
			continue
		}
		var sd subredditData
		if err := json.Unmarshal(child.Data, &sd); err != nil {
			return nil, fmt.Errorf("decode subreddit: %w", err)
		}
		switch {
		case sd.Over18:
			c.logger.Debug("Skipping NSFW subreddit", zap.String("subreddit", sd.DisplayName))
		case sd.Subscribers < MinSubscribers:
			c.logger.Debug("Skipping small subreddit",
				zap.String("subreddit", sd.DisplayName),
				zap.Int("subscribers", sd.Subscribers))
		default:
			out = append(out, sd.DisplayName)
		}
	}
	return out, nil
}

// FetchRecentPosts reads up to limit posts from the subreddit listing and
// attaches each post's top comments. Stickied, locked and archived posts
// are left out since nobody can usefully reply to them.
func (c *Client) FetchRecentPosts(ctx context.Context, subreddit string, limit int, sort string) ([]models.CandidatePost, error) {
	sub := url.PathEscape(models.CleanSubreddit(subreddit))
	q := url.Values{"limit": {strconv.Itoa(limit)}, "raw_json": {"1"}}

	var l listing
	if err := c.call(ctx, http.MethodGet, "/r/"+sub+"/"+sort, q, nil, &l); err != nil {
		return nil, fmt.Errorf("fetch r/%s/%s: %w", subreddit, sort, err)
	}

	var out []models.CandidatePost
	for _, child := range l.Data.Children {
		if child.Kind != "t3" {
			continue
		}
		var ld linkData
		if err := json.Unmarshal(child.Data, &ld); err != nil {
			return nil, fmt.Errorf("decode post: %w", err)
		}
		if ld.Stickied || ld.Locked || ld.Archived {
			continue
		}

		post := models.CandidatePost{
			ID:        ld.ID,
			FullName:  ld.Name,
			Subreddit: ld.Subreddit,
			Title:     ld.Title,
			Body:      ld.Selftext,
			Author:    ld.Author,
			URL:       ld.URL,
			CreatedAt: time.Unix(int64(ld.CreatedUTC), 0).UTC(),
		}
		comments, err := c.topComments(ctx, sub, ld.ID)
		if err != nil {
			// a post without its comments is still usable
			c.logger.Warn("Failed to fetch top comments", zap.String("post_id", ld.ID), zap.Error(err))
		}
		post.TopComments = comments
		out = append(out, post)

		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (c *Client) topComments(ctx context.Context, sub, postID string) ([]models.Comment, error) {
	q := url.Values{"sort": {"top"}, "limit": {"5"}, "depth": {"1"}, "raw_json": {"1"}}

	// The endpoint answers with two listings: the post, then its comments.
	var pair []listing
	if err := c.call(ctx, http.MethodGet, "/r/"+sub+"/comments/"+url.PathEscape(postID), q, nil, &pair); err != nil {
		return nil, err
	}
	if len(pair) < 2 {
		return nil, nil
	}

	var out []models.Comment
	for _, child := range pair[1].Data.Children {
		if child.Kind != "t1" {
			continue
		}
		var cd commentData
		if err := json.Unmarshal(child.Data, &cd); err != nil {
			return nil, fmt.Errorf("decode comment: %w", err)
		}
		if cd.Stickied || cd.Author == "[deleted]" {
			continue
		}
		out = append(out, models.Comment{ID: cd.ID, FullName: cd.Name, Author: cd.Author, Body: cd.Body})
	}
	return out, nil
}

// Authenticate checks that the account credentials work.
func (c *Client) Authenticate(ctx context.Context) error {
	if !c.creds.CanAct() {
		return models.Configurationf("reddit credentials for client %q have no user grant", c.creds.ClientID)
	}
	var me meResponse
	if err := c.call(ctx, http.MethodGet, "/api/v1/me", nil, nil, &me); err != nil {
		return fmt.Errorf("verify reddit account: %w", err)
	}
	c.logger.Info("Authenticated with Reddit", zap.String("username", me.Name))
	return nil
}

func (c *Client) PostComment(ctx context.Context, post models.CandidatePost, text string) error {
	thing := post.FullName
	if thing == "" {
		thing = "t3_" + post.ID
	}
	form := url.Values{"thing_id": {thing}, "text": {text}, "api_type": {"json"}}

	var resp actionResponse
	if err := c.call(ctx, http.MethodPost, "/api/comment", nil, form, &resp); err != nil {
		return fmt.Errorf("comment on %s: %w", thing, err)
	}
	if len(resp.JSON.Errors) > 0 {
		return fmt.Errorf("comment on %s: %v", thing, resp.JSON.Errors[0])
	}
	return nil
}

func (c *Client) Upvote(ctx context.Context, target string) error {
	form := url.Values{"id": {target}, "dir": {"1"}}
	if err := c.call(ctx, http.MethodPost, "/api/vote", nil, form, nil); err != nil {
		return fmt.Errorf("upvote %s: %w", target, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
