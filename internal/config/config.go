// Package config holds hub configuration defaults.
package config

import "os"

// Config holds the hub's runtime settings.
type Config struct {
	DBPath   string
	Zone     string
	APIPort  int
	DNSPort  int
	PublicIP string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DBPath:  "ainthub.db",
		Zone:    "aint",
		APIPort: 8080,
		DNSPort: 53,
	}
}

// GetEnv returns the environment value for key, or defaultVal when unset.
func GetEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
