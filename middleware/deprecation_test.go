package middleware

import (
	"testing"
	"time"
)

func TestDeprecationConfigLookup(t *testing.T) {
	sunset := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := NewDeprecationConfig(
		DeprecatedRoute{Method: "GET", Path: "/v1/old-roles", Sunset: sunset, Message: "use /v1/roles"},
	)

	r, ok := cfg.Lookup("GET", "/v1/old-roles")
	if !ok {
		t.Fatal("expected deprecated route to be found")
	}
	if !r.Sunset.Equal(sunset) {
		t.Errorf("sunset = %v, want %v", r.Sunset, sunset)
	}

	if _, ok := cfg.Lookup("POST", "/v1/old-roles"); ok {
		t.Error("method should participate in the lookup key")
	}
	if _, ok := cfg.Lookup("GET", "/v1/roles"); ok {
		t.Error("unconfigured route should not be deprecated")
	}
}

func TestDeprecationConfigNilLookup(t *testing.T) {
	var cfg *DeprecationConfig
	if _, ok := cfg.Lookup("GET", "/anything"); ok {
		t.Error("nil config should report no deprecations")
	}
}
