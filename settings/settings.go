// Package settings holds the user-editable configuration of the
// summarizer: the completion endpoint, its API key, the model, and whether
// summary buttons are enabled on the listing.
//
// Values live in a key/value [Store]. Writes are last-writer-wins.
package settings

import (
	"context"
	"fmt"
	"strconv"
)

// Store keys.
const (
	KeyAPIURL  = "apiUrl"
	KeyAPIKey  = "apiKey"
	KeyModel   = "model"
	KeyEnabled = "extensionEnabled"
)

// DefaultModel is used when no model has been saved.
const DefaultModel = "gpt-4o"

// Settings configures the summarization endpoint.
type Settings struct {
	APIURL string `json:"apiUrl" yaml:"apiUrl"`
	APIKey string `json:"apiKey" yaml:"apiKey"`
	Model  string `json:"model" yaml:"model"`
}

// Configured reports whether both the endpoint and the key are set.
func (s Settings) Configured() bool {
	return s.APIURL != "" && s.APIKey != ""
}

// Store is a persistent string key/value store.
type Store interface {
	// Get returns the stored values for keys. Missing keys are absent
	// from the result.
	Get(ctx context.Context, keys ...string) (map[string]string, error)
	// Set stores every entry of values.
	Set(ctx context.Context, values map[string]string) error
}

// Load reads the current settings from s.
func Load(ctx context.Context, s Store) (Settings, error) {
	m, err := s.Get(ctx, KeyAPIURL, KeyAPIKey, KeyModel)
	if err != nil {
		return Settings{}, fmt.Errorf("settings: load: %w", err)
	}
	out := Settings{
		APIURL: m[KeyAPIURL],
		APIKey: m[KeyAPIKey],
		Model:  m[KeyModel],
	}
	if out.Model == "" {
		out.Model = DefaultModel
	}
	return out, nil
}

// Save writes v to s.
func Save(ctx context.Context, s Store, v Settings) error {
	if v.Model == "" {
		v.Model = DefaultModel
	}
	err := s.Set(ctx, map[string]string{
		KeyAPIURL: v.APIURL,
		KeyAPIKey: v.APIKey,
		KeyModel:  v.Model,
	})
	if err != nil {
		return fmt.Errorf("settings: save: %w", err)
	}
	return nil
}

// Enabled reports whether summary buttons are enabled. Anything other than
// a stored "false" counts as enabled.
func Enabled(ctx context.Context, s Store) (bool, error) {
	m, err := s.Get(ctx, KeyEnabled)
	if err != nil {
		return false, fmt.Errorf("settings: load %s: %w", KeyEnabled, err)
	}
	return m[KeyEnabled] != "false", nil
}

// SetEnabled persists the enabled flag.
func SetEnabled(ctx context.Context, s Store, enabled bool) error {
	if err := s.Set(ctx, map[string]string{KeyEnabled: strconv.FormatBool(enabled)}); err != nil {
		return fmt.Errorf("settings: save %s: %w", KeyEnabled, err)
	}
	return nil
}

// MaskKey hides all but the last four characters of an API key.
func MaskKey(key string) string {
	r := []rune(key)
	if len(r) <= 4 {
		return ""
	}
	masked := make([]rune, len(r))
	for i := range r {
		if i < len(r)-4 {
			masked[i] = '*'
		} else {
			masked[i] = r[i]
		}
	}
	return string(masked)
}
