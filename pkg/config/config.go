package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/xaenox/subreddit-bot/internal/models"
)

type Config struct {
	Database   DatabaseConfig       `mapstructure:"database"`
	Generator  GeneratorConfig      `mapstructure:"generator"`
	OpenAI     OpenAIConfig         `mapstructure:"openai"`
	Gemini     GeminiConfig         `mapstructure:"gemini"`
	Gate       GateConfig           `mapstructure:"gate"`
	Reddit     RedditConfig         `mapstructure:"reddit"`
	Telegram   TelegramConfig       `mapstructure:"telegram"`
	Metrics    MetricsConfig        `mapstructure:"metrics"`
	Run        RunConfig            `mapstructure:"run"`
	Bots       []models.BotIdentity `mapstructure:"bots"`
	Exclusions []ExclusionConfig    `mapstructure:"exclusions"`
}

type DatabaseConfig struct {
	// Driver is one of postgres, sqlite or memory.
	Driver      string `mapstructure:"driver"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	URL         string `mapstructure:"url"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

type GeneratorConfig struct {
	// Provider is openai (any OpenAI-compatible endpoint, Groq by default) or gemini.
	Provider string `mapstructure:"provider"`
}

type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

type GeminiConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

type GateConfig struct {
	// ModelTopicality asks the chat model about topicality, falling back to
	// the lexical check when it is unreachable.
	ModelTopicality bool `mapstructure:"model_topicality"`
}

type AccountConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	RefreshToken string `mapstructure:"refresh_token"`
	UserAgent    string `mapstructure:"user_agent"`
}

type RedditConfig struct {
	// Accounts is keyed by credential handle. Viper folds keys to lower case.
	Accounts map[string]AccountConfig `mapstructure:"accounts"`
	Timeout  time.Duration            `mapstructure:"timeout"`
	RetryMax int                      `mapstructure:"retry_max"`
}

type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

type RunConfig struct {
	PostsPerSubreddit int           `mapstructure:"posts_per_subreddit"`
	CommentsToUpvote  int           `mapstructure:"comments_to_upvote"`
	Sort              string        `mapstructure:"sort"`
	Cooldown          time.Duration `mapstructure:"cooldown"`
	ActionInterval    time.Duration `mapstructure:"action_interval"`
	ActionJitter      time.Duration `mapstructure:"action_jitter"`
	Parallel          int           `mapstructure:"parallel"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

type ExclusionConfig struct {
	Subreddit string `mapstructure:"subreddit"`
	Reason    string `mapstructure:"reason"`
}

// DefaultAccount is the handle the REDDIT_* environment variables fill.
const DefaultAccount = "default"

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		Driver:   "postgres",
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
		URL:      dbURL,
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "reddit_bots")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.sqlite_path", "subreddit-bot.db")
	v.SetDefault("database.use_in_memory", false)

	v.SetDefault("generator.provider", "openai")
	v.SetDefault("openai.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("openai.model", "llama3-8b-8192")
	v.SetDefault("openai.max_tokens", 300)
	v.SetDefault("openai.temperature", 0.7)
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.max_tokens", 300)
	v.SetDefault("gemini.temperature", 0.7)
	v.SetDefault("gate.model_topicality", false)

	v.SetDefault("reddit.timeout", 20*time.Second)
	v.SetDefault("reddit.retry_max", 3)

	v.SetDefault("metrics.job", "subreddit_bot")

	v.SetDefault("run.posts_per_subreddit", 5)
	v.SetDefault("run.comments_to_upvote", 3)
	v.SetDefault("run.sort", "rising")
	v.SetDefault("run.cooldown", 72*time.Hour)
	v.SetDefault("run.action_interval", 30*time.Second)
	v.SetDefault("run.action_jitter", 15*time.Second)
	v.SetDefault("run.parallel", 1)
	v.SetDefault("run.timeout", 30*time.Minute)
}

// LoadConfig reads the YAML file at path, if it exists, over the defaults
// and then applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Enable environment variable support
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		config.Database = dbConfig
	}
	if config.Database.UseInMemory {
		config.Database.Driver = "memory"
	}

	// Get other environment variables
	if apiKey := firstNonEmpty(v.GetString("GROQ_API_KEY"), v.GetString("OPENAI_API_KEY")); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}
	if apiKey := v.GetString("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}
	if chatID := v.GetInt64("TELEGRAM_CHAT_ID"); chatID != 0 {
		config.Telegram.ChatID = chatID
	}
	if pgw := v.GetString("PUSHGATEWAY_URL"); pgw != "" {
		config.Metrics.PushgatewayURL = pgw
	}

	if id := v.GetString("REDDIT_CLIENT_ID"); id != "" {
		if config.Reddit.Accounts == nil {
			config.Reddit.Accounts = make(map[string]AccountConfig)
		}
		config.Reddit.Accounts[DefaultAccount] = AccountConfig{
			ClientID:     id,
			ClientSecret: v.GetString("REDDIT_CLIENT_SECRET"),
			Username:     v.GetString("REDDIT_USERNAME"),
			Password:     v.GetString("REDDIT_PASSWORD"),
			RefreshToken: v.GetString("REDDIT_REFRESH_TOKEN"),
			UserAgent:    v.GetString("REDDIT_USER_AGENT"),
		}
	}

	for i := range config.Bots {
		config.Bots[i] = config.Bots[i].WithDefaults()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite", "memory":
	default:
		return models.Configurationf("unknown database driver %q", c.Database.Driver)
	}
	switch c.Generator.Provider {
	case "openai", "gemini":
	default:
		return models.Configurationf("unknown generator provider %q", c.Generator.Provider)
	}
	for i, b := range c.Bots {
		if strings.TrimSpace(b.ID) == "" {
			return models.Configurationf("bots[%d] has no id", i)
		}
	}
	return nil
}

// Account returns the credentials for handle. An empty handle means the
// default account.
func (c *Config) Account(handle string) (AccountConfig, bool) {
	if handle == "" {
		handle = DefaultAccount
	}
	acct, ok := c.Reddit.Accounts[strings.ToLower(handle)]
	return acct, ok
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
