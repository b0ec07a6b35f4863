//go:build !sqlite

package storage

import (
	"strings"
	"testing"
)

func TestNewStoreSQLiteUnavailableWithoutTag(t *testing.T) {
	_, err := NewStore("sqlite", "runs.db")
	if err == nil {
		t.Fatal("expected sqlite to be unavailable without the build tag")
	}
	if !strings.Contains(err.Error(), `"runs.db"`) || !strings.Contains(err.Error(), "-tags sqlite") {
		t.Fatalf("unexpected error text: %v", err)
	}
}
