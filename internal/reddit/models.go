package reddit

import "encoding/json"

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
	Error       string `json:"error"`
}

type listing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string  `json:"after"`
		Children []thing `json:"children"`
	} `json:"data"`
}

type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type subredditData struct {
	DisplayName string `json:"display_name"`
	Over18      bool   `json:"over18"`
	Subscribers int    `json:"subscribers"`
}

type linkData struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Subreddit  string  `json:"subreddit"`
	Title      string  `json:"title"`
	Selftext   string  `json:"selftext"`
	Author     string  `json:"author"`
	URL        string  `json:"url"`
	Stickied   bool    `json:"stickied"`
	Locked     bool    `json:"locked"`
	Archived   bool    `json:"archived"`
	CreatedUTC float64 `json:"created_utc"`
}

type commentData struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Author   string `json:"author"`
	Body     string `json:"body"`
	Stickied bool   `json:"stickied"`
}

type meResponse struct {
	Name string `json:"name"`
}

// actionResponse is the api_type=json envelope of write endpoints.
type actionResponse struct {
	JSON struct {
		Errors [][]any `json:"errors"`
	} `json:"json"`
}
