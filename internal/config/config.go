// Package config loads client and devserver settings from the
// environment.
package config

import (
	"fmt"
	"os"
	"strings"
)

// Client configures the chat client binaries.
type Client struct {
	APIBaseURL string
	SocketURL  string
	Token      string
	UserID     string
}

// LoadClient reads the client configuration from environment
// variables. CHAT_TOKEN and CHAT_USER_ID are required.
func LoadClient() (Client, error) {
	cfg := Client{
		APIBaseURL: getEnvOrDefault("CHAT_API_URL", "http://localhost:8080"),
		SocketURL:  getEnvOrDefault("CHAT_SOCKET_URL", "ws://localhost:8080/ws"),
		Token:      strings.TrimSpace(os.Getenv("CHAT_TOKEN")),
		UserID:     strings.TrimSpace(os.Getenv("CHAT_USER_ID")),
	}
	if cfg.Token == "" {
		return Client{}, fmt.Errorf("CHAT_TOKEN is required")
	}
	if cfg.UserID == "" {
		return Client{}, fmt.Errorf("CHAT_USER_ID is required")
	}
	return cfg, nil
}

// Server configures the local development server.
type Server struct {
	Addr string
}

// LoadServer parses the listen address from PORT.
func LoadServer() (Server, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Allow passing ":8080" or "127.0.0.1:8080" directly.
		return Server{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return Server{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return Server{Addr: ":" + port}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}
