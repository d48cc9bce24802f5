// Package config loads service configuration from the environment.
package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every tunable the API binary reads at startup. Values come
// from CHATLINK_* environment variables; a local .env file is honored
// outside release mode for development convenience.
type Config struct {
	Debug bool   `envconfig:"debug"`
	Port  int    `envconfig:"port" default:"8080"`
	Env   string `envconfig:"env"`

	MongoURI string `envconfig:"mongodb_uri"`

	// JWTSecret is the HMAC secret shared with the identity provider that
	// mints session tokens. JWTKeys/JWTActiveKid optionally supply a
	// kid:secret,kid2:secret2 key set so tokens survive secret rotation.
	JWTSecret    string `envconfig:"jwt_secret"`
	JWTKeys      string `envconfig:"jwt_keys"`
	JWTActiveKid string `envconfig:"jwt_active_kid"`

	CloudinaryCloudName string `envconfig:"cloudinary_cloud_name"`
	CloudinaryAPIKey    string `envconfig:"cloudinary_api_key"`
	CloudinaryAPISecret string `envconfig:"cloudinary_api_secret"`

	// RateLimitRPM bounds per-identity calls to the heartbeat and search
	// endpoints, which clients poll.
	RateLimitRPM int `envconfig:"rate_limit_rpm" default:"60"`
}

// Load reads the .env file (when not running in release mode) and then the
// process environment.
func Load() (*Config, error) {
	if os.Getenv("GIN_MODE") != "release" {
		if err := godotenv.Load("./.env"); err != nil {
			log.Printf("couldn't load env vars: %v", err)
		}
	}

	c := &Config{}
	if err := envconfig.Process("chatlink", c); err != nil {
		return nil, err
	}
	return c, nil
}
