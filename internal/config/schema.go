package config

// Config is the top-level YAML structure. Environment variables override the
// file so the receiver can run from env alone.
type Config struct {
	Server  ServerConf  `yaml:"server"`
	Auth    AuthConf    `yaml:"auth"`
	Log     LogConf     `yaml:"log"`
	Logging LoggingConf `yaml:"logging"`
}

// ServerConf holds the HTTP listener settings.
type ServerConf struct {
	Addr         string `yaml:"addr"`
	Port         string `yaml:"-" env:"PORT"` // env only; becomes ":<port>"
	WebhookPath  string `yaml:"webhook_path" env:"WEBHOOK_PATH"`
	MaxBodyBytes int64  `yaml:"max_body_bytes" env:"MAX_BODY_BYTES"`
}

// AuthConf configures the shared-secret check on inbound webhooks.
type AuthConf struct {
	Header           string `yaml:"header" env:"AUTH_HEADER"` // exact Authorization header value
	ProtectDashboard bool   `yaml:"protect_dashboard" env:"PROTECT_DASHBOARD"`
}

// LogConf configures the retained event window.
type LogConf struct {
	Capacity int    `yaml:"capacity" env:"EVENT_CAPACITY"`
	Path     string `yaml:"path" env:"EVENTS_FILE"`
}

// LoggingConf configures process logging.
type LoggingConf struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`   // debug | info | warn | error
	Format string `yaml:"format" env:"LOG_FORMAT"` // text | json
}
