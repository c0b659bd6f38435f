// Package config holds the runtime credential store. Keys can be seeded from
// the environment and updated while the server is running; sessions read a
// point-in-time snapshot taken once at session start and never observe later
// updates.
package config

import (
	"os"
	"sync"
)

// Keys is an immutable set of upstream service credentials. The zero value
// means "nothing configured".
type Keys struct {
	Murf        string
	AssemblyAI  string
	Gemini      string
	News        string
	OpenWeather string
}

// Store guards the mutable key set. Snapshot is the only read path handed to
// session code.
type Store struct {
	mu   sync.RWMutex
	keys Keys
}

// NewStore creates a store seeded with the given keys.
func NewStore(keys Keys) *Store {
	return &Store{keys: keys}
}

// NewStoreFromEnv creates a store seeded from the conventional environment
// variables.
func NewStoreFromEnv() *Store {
	return NewStore(Keys{
		Murf:        os.Getenv("MURF_API_KEY"),
		AssemblyAI:  os.Getenv("ASSEMBLYAI_API_KEY"),
		Gemini:      os.Getenv("GEMINI_API_KEY"),
		News:        os.Getenv("NEWS_API_KEY"),
		OpenWeather: os.Getenv("OPENWEATHER_API_KEY"),
	})
}

// Set merges every non-empty field of update into the store and returns the
// names of the keys that changed. Key material itself is never returned so
// callers can log the result directly.
func (s *Store) Set(update Keys) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated []string
	merge := func(name string, target *string, value string) {
		if value == "" {
			return
		}
		*target = value
		updated = append(updated, name)
	}

	merge("murf", &s.keys.Murf, update.Murf)
	merge("assemblyai", &s.keys.AssemblyAI, update.AssemblyAI)
	merge("gemini", &s.keys.Gemini, update.Gemini)
	merge("news", &s.keys.News, update.News)
	merge("openweather", &s.keys.OpenWeather, update.OpenWeather)

	return updated
}

// Snapshot returns a copy of the current key set.
func (s *Store) Snapshot() Keys {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.keys
}
