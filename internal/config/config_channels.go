package config

// ChannelsConfig groups per-connector channel configuration.
type ChannelsConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig configures the Telegram connector.
type TelegramConfig struct {
	// Token is the bot token from @BotFather.
	Token string `yaml:"token"`

	// WebhookURL, if set, selects webhook intake instead of long-poll.
	WebhookURL string `yaml:"webhookUrl"`

	// WebhookSecret, if set, is checked against the
	// X-Telegram-Bot-Api-Secret-Token header on inbound webhook requests.
	WebhookSecret string `yaml:"webhookSecret"`
}
