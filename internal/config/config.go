// Package config reads client settings from the environment, with an
// optional YAML file for the simulator and bridge binaries.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Client holds connection settings for the room client.
type Client struct {
	ServerURL        string
	SocketURL        string
	QuestionDuration int
}

// ClientFromEnv reads SERVER_URL, SOCKET_URL and QUESTION_DURATION
// (with defaults).
func ClientFromEnv() Client {
	duration, err := strconv.Atoi(getEnv("QUESTION_DURATION", "30"))
	if err != nil || duration <= 0 {
		duration = 30
	}
	return Client{
		ServerURL:        getEnv("SERVER_URL", "http://localhost:8000"),
		SocketURL:        getEnv("SOCKET_URL", "ws://localhost:8000/ws"),
		QuestionDuration: duration,
	}
}

// Sim holds the simulator's listen settings.
type Sim struct {
	Addr string `yaml:"addr"`
}

// SimFromEnv reads SIM_ADDR (with default), overridden by the YAML file
// named in SIM_CONFIG when set.
func SimFromEnv() (Sim, error) {
	cfg := Sim{Addr: getEnv("SIM_ADDR", ":8000")}
	if path := os.Getenv("SIM_CONFIG"); path != "" {
		if err := LoadYAML(path, &cfg); err != nil {
			return Sim{}, err
		}
	}
	return cfg, nil
}

// LoadYAML unmarshals a YAML file into out.
func LoadYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
