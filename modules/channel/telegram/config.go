package telegram

import (
	"fmt"
	"net/url"
	"regexp"
)

// tokenPattern matches the Telegram bot token format: <digits>:<alphanum+dash>.
var tokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// Config holds the Telegram channel configuration.
type Config struct {
	Token          string `yaml:"token"`
	Mode           string `yaml:"mode"`
	PollingTimeout int    `yaml:"polling_timeout"`
	WebhookURL     string `yaml:"webhook_url"`
	WebhookSecret  string `yaml:"webhook_secret"`
	APIURL         string `yaml:"api_url"`

	// Users maps warden user IDs to the Telegram chat that receives their
	// approval prompts. Decisions are accepted only from these chats.
	Users map[string]int64 `yaml:"users"`
}

// defaults applies default values to unset fields.
func (c *Config) defaults() {
	if c.Mode == "" {
		c.Mode = "polling"
	}
	if c.PollingTimeout == 0 {
		c.PollingTimeout = 30
	}
	if c.APIURL == "" {
		c.APIURL = "https://api.telegram.org"
	}
}

// validate checks configuration field constraints beyond basic presence
// checks. It is called from Telegram.Validate after defaults have been
// applied.
func (c *Config) validate() error {
	if c.Token != "" && !tokenPattern.MatchString(c.Token) {
		return fmt.Errorf("telegram: token format invalid (expected <bot_id>:<hash>)")
	}

	if c.APIURL != "" {
		u, err := url.Parse(c.APIURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("telegram: api_url must be a valid http/https URL, got %q", c.APIURL)
		}
	}

	if c.PollingTimeout < 0 || c.PollingTimeout > 50 {
		return fmt.Errorf("telegram: polling_timeout must be 0-50, got %d", c.PollingTimeout)
	}

	if len(c.Users) == 0 {
		return fmt.Errorf("telegram: at least one user-to-chat mapping is required")
	}

	return nil
}

// chatFor returns the chat mapped to a warden user.
func (c *Config) chatFor(userID string) (int64, bool) {
	id, ok := c.Users[userID]
	return id, ok
}

// userFor returns the warden user mapped to a chat.
func (c *Config) userFor(chatID int64) (string, bool) {
	for user, id := range c.Users {
		if id == chatID {
			return user, true
		}
	}
	return "", false
}
