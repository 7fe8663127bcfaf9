package main

import (
	"fmt"
	"log"
	"time"

	"github.com/lixenwraith/settings"
)

// LogLevel is an enum-like setting persisted by member name.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
)

// ServiceConfig is the typed configuration for this demo service.
type ServiceConfig struct {
	settings.Base

	Name      string
	Retries   int
	RateLimit float64
	Enabled   bool
	Level     LogLevel
	Deadline  time.Time
	Timeout   time.Duration
	Endpoints []string
	MaxBody   *int64
}

func main() {
	settings.RegisterEnum(map[string]LogLevel{
		"debug": LevelDebug,
		"info":  LevelInfo,
		"warn":  LevelWarn,
	})

	p, err := settings.New(settings.Options{
		File:    "service.config",
		Section: "service",
	})
	if err != nil {
		log.Fatal(err)
	}

	// Defaults double as the seed values for a store that does not exist yet.
	cfg := ServiceConfig{
		Name:      "demo",
		Retries:   3,
		RateLimit: 12.5,
		Enabled:   true,
		Level:     LevelInfo,
		Timeout:   5 * time.Second,
		Endpoints: []string{"localhost:8080"},
	}

	if err := p.Read(&cfg); err != nil {
		log.Fatal(err)
	}
	if cfg.LastError != "" {
		log.Printf("warning: %s", cfg.LastError)
	}

	fmt.Printf("name=%s retries=%d level=%v endpoints=%v\n",
		cfg.Name, cfg.Retries, cfg.Level, cfg.Endpoints)

	// Mutate and persist. The write is atomic and serialized process-wide.
	cfg.Retries = 5
	cfg.Endpoints = append(cfg.Endpoints, "localhost:8081")
	if err := p.Write(&cfg); err != nil {
		log.Fatal(err)
	}
}
