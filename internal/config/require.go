package config

import "log"

func MustNonEmpty(value, envName string) {
	if value == "" {
		log.Fatalf("missing required env %s", envName)
	}
}

func MustNonEmptyBytes(value []byte, envName string) {
	if len(value) == 0 {
		log.Fatalf("missing required env %s", envName)
	}
}

// Validate stops the process when a setting the server cannot start without is missing.
func (c Config) Validate() {
	MustNonEmpty(c.DatabaseURL, "DATABASE_URL")
	MustNonEmptyBytes(c.SessionSecret, "SESSION_SECRET")
	if c.ItemsPerPage <= 0 {
		log.Fatalf("ITEMS_PER_PAGE must be positive, got %d", c.ItemsPerPage)
	}
}
