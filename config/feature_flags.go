package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags manages feature toggles for optional parts of the API surface.
// Flags are read from the environment at startup and can be flipped at runtime
// through SetEnabled (used by tests and admin tooling).
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]*Feature
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool
}

// Predefined feature flag names.
const (
	// FeatureDayListing enables the per-day session listing used by the
	// teacher record screens.
	FeatureDayListing = "attendance.day_listing"

	// FeatureCohortSummary enables the batched cohort-wide summary endpoint.
	FeatureCohortSummary = "attendance.cohort_summary"

	// FeatureScanEvents enables publishing scan events on the event bus.
	FeatureScanEvents = "attendance.scan_events"
)

// defaultFeatures lists every known flag with its default state.
var defaultFeatures = []Feature{
	{Name: FeatureDayListing, Description: "per-day session listing for record screens", Enabled: true},
	{Name: FeatureCohortSummary, Description: "batched cohort-wide attendance summary", Enabled: true},
	{Name: FeatureScanEvents, Description: "publish scan events on the event bus", Enabled: true},
}

// LoadFeatureFlags builds the flag set, applying FEATURE_<NAME>=true/false
// environment overrides (dots replaced by underscores, upper-cased).
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{features: make(map[string]*Feature, len(defaultFeatures))}
	for _, f := range defaultFeatures {
		feature := f
		if v, ok := envOverride(f.Name); ok {
			feature.Enabled = v
		}
		ff.features[f.Name] = &feature
	}
	return ff
}

// IsEnabled reports whether the named feature is on.
// Unknown features are off.
func (ff *FeatureFlags) IsEnabled(name string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()
	f, ok := ff.features[name]
	return ok && f.Enabled
}

// SetEnabled flips a feature at runtime.
func (ff *FeatureFlags) SetEnabled(name string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if f, ok := ff.features[name]; ok {
		f.Enabled = enabled
	}
}

// List returns a snapshot of all flags.
func (ff *FeatureFlags) List() []Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()
	out := make([]Feature, 0, len(ff.features))
	for _, f := range ff.features {
		out = append(out, *f)
	}
	return out
}

func envOverride(name string) (bool, bool) {
	key := "FEATURE_" + strings.ToUpper(strings.ReplaceAll(name, ".", "_"))
	val := os.Getenv(key)
	if val == "" {
		return false, false
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, false
	}
	return b, true
}
