package params

import (
	"os"

	"github.com/joho/godotenv"
)

type Server struct {
	// BindAddr is the listen address for the HTTP surface.
	BindAddr string
}

type Auth struct {
	// DefaultUser/DefaultSecret are the fallback credential pair used
	// when the record store has no entry for a caller.
	DefaultUser   string
	DefaultSecret string
	// CredDB is the pebble database holding bulk-loaded account and auth
	// records. Empty disables store-backed credentials.
	CredDB string
}

type Config struct {
	Server  Server
	Auth    Auth
	LogFile string
}

func Default() Config {
	return Config{
		Server: Server{
			BindAddr: "0.0.0.0:7979",
		},
		Auth: Auth{
			DefaultUser:   "testuser",
			DefaultSecret: "testpass",
			CredDB:        "data/obdb",
		},
		LogFile: "data/obgate.log",
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("OBGATE_BIND"); v != "" {
		cfg.Server.BindAddr = v
	}
	if v := os.Getenv("OBGATE_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv("OBGATE_AUTH_USER"); v != "" {
		cfg.Auth.DefaultUser = v
	}
	if v := os.Getenv("OBGATE_AUTH_SECRET"); v != "" {
		cfg.Auth.DefaultSecret = v
	}
	if v, ok := os.LookupEnv("OBGATE_CRED_DB"); ok {
		cfg.Auth.CredDB = v
	}

	return cfg
}
