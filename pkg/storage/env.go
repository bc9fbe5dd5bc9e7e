package storage

import "os"

// envDefault returns the environment variable or def. It lets the flag
// defaults pick up values loaded from a .env file before flags are parsed.
func envDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}
