//go:build integration

// Integration test against a running server: go run ./cmd/polymer
//
// Run: go test -tags=integration ./pkg/linesclient/
package linesclient_test

import (
	"context"
	"os"
	"testing"

	"github.com/joeblew999/plat-polymer/internal/feature"
	"github.com/joeblew999/plat-polymer/pkg/linesclient"
)

func baseURL() string {
	if u := os.Getenv("POLYMER_BASE_URL"); u != "" {
		return u
	}
	return "http://localhost:8086"
}

func TestHealth(t *testing.T) {
	body, err := linesclient.New(baseURL()).Health(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" {
		t.Fatalf("status=%q, want ok", body.Status)
	}
}

func TestSystems(t *testing.T) {
	cog := os.Getenv("POLYMER_COG_ID")
	if cog == "" {
		t.Skip("POLYMER_COG_ID not set")
	}
	if _, err := linesclient.New(baseURL()).Systems(context.Background(), cog, feature.Point); err != nil {
		t.Fatal(err)
	}
}
