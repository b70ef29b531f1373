package config

import (
	"log"

	"github.com/spf13/viper"
)

type Config struct {
	DatabaseURL string       `mapstructure:"database_url"`
	ServerPort  string       `mapstructure:"server_port"`
	JWTSecret   string       `mapstructure:"jwt_secret"`
	Issuer      string       `mapstructure:"issuer"`
	Email       EmailConfig  `mapstructure:"email"`
	Invite      InviteConfig `mapstructure:"invite"`
	EID         EIDConfig    `mapstructure:"eid"`
	Partners    []Partner    `mapstructure:"partners"`
	CORSOrigins []string     `mapstructure:"cors_origins"`
}

type EmailConfig struct {
	From              string `mapstructure:"from"`
	SMTPHost          string `mapstructure:"smtp_host"`
	SMTPPort          int    `mapstructure:"smtp_port"`
	Username          string `mapstructure:"username"`
	Password          string `mapstructure:"password"`
	InviteURLTemplate string `mapstructure:"invite_url_template"`
}

type InviteConfig struct {
	ExpiryDays int `mapstructure:"expiry_days"`
}

// EIDConfig points at the external identity services. The providers are
// integration points, not something this service implements.
type EIDConfig struct {
	MobileIDEndpoint string `mapstructure:"mobile_id_endpoint"`
	SmartIDEndpoint  string `mapstructure:"smart_id_endpoint"`
	RelyingPartyName string `mapstructure:"relying_party_name"`
	RelyingPartyUUID string `mapstructure:"relying_party_uuid"`
}

// Partner is one OpenID client allowed to use the authorize endpoint.
type Partner struct {
	ID          string `mapstructure:"id"`
	RedirectURI string `mapstructure:"redirect_uri"`
}

// Load reads the configuration from a YAML file and returns a Config instance.
func Load() *Config {
	v := viper.New()

	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.AddConfigPath("./config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		log.Fatalf("Error unmarshalling config: %v", err)
	}

	// Fallback defaults
	if config.ServerPort == "" {
		config.ServerPort = "8080"
	}
	if config.JWTSecret == "" {
		log.Fatal("JWT secret must be set in the config file")
	}
	if config.Issuer == "" {
		config.Issuer = "https://api.agora.dev"
	}
	if config.Email.SMTPPort == 0 {
		config.Email.SMTPPort = 587
	}
	if config.Email.InviteURLTemplate == "" {
		config.Email.InviteURLTemplate = "https://app.agora.dev/groups/%s/invites/%s"
	}
	if config.Invite.ExpiryDays == 0 {
		config.Invite.ExpiryDays = 14
	}
	if len(config.CORSOrigins) == 0 {
		config.CORSOrigins = []string{"http://localhost:3000"}
	}

	return &config
}
