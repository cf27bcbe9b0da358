package gateway

import "time"

// Config is the gateway module's YAML section.
type Config struct {
	Bind            string                      `yaml:"bind"`
	Auth            AuthConfig                  `yaml:"auth"`
	Webhooks        map[string]WebhookSourceCfg `yaml:"webhooks"`
	ReadTimeout     time.Duration               `yaml:"read_timeout"`
	WriteTimeout    time.Duration               `yaml:"write_timeout"`
	ShutdownTimeout time.Duration               `yaml:"shutdown_timeout"`
}

// defaults fills unset fields. The bind address stays loopback-only unless
// the operator opts into something wider.
func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = "127.0.0.1:8080"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

// AuthConfig guards the approval API. Either a bearer token or a basic
// user/pass pair; when neither is set the approval routes are not mounted.
type AuthConfig struct {
	BearerToken string `yaml:"bearer_token"`
	BasicUser   string `yaml:"basic_user"`
	BasicPass   string `yaml:"basic_pass"`
}

// IsConfigured reports whether any auth method is set.
func (a AuthConfig) IsConfigured() bool {
	return a.BearerToken != "" || (a.BasicUser != "" && a.BasicPass != "")
}

// WebhookSourceCfg holds the HMAC secret for one inbound webhook source.
type WebhookSourceCfg struct {
	Secret string `yaml:"secret"`
}
