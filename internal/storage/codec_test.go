package storage

import (
	"errors"
	"testing"

	"cachega/internal/model"
)

func TestRunCodecRoundTrip(t *testing.T) {
	run := testRun("run-1", "2026-03-04T05:06:07Z")
	data, err := EncodeRun(run)
	if err != nil {
		t.Fatalf("encode run: %v", err)
	}
	decoded, err := DecodeRun(data)
	if err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if decoded.ID != run.ID || decoded.State != run.State || decoded.Config.Crossover != "UX" {
		t.Fatalf("unexpected decoded run: %+v", decoded)
	}
}

func TestRunCodecVersionMismatch(t *testing.T) {
	if _, err := EncodeRun(model.RunRecord{ID: "unstamped"}); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch on encode, got %v", err)
	}
	data := []byte(`{"schema_version":2,"codec_version":1,"id":"future"}`)
	if _, err := DecodeRun(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch on decode, got %v", err)
	}
}

func TestDiagnosticsCodecRejectsGarbage(t *testing.T) {
	if _, err := DecodeDiagnostics([]byte("not json")); err == nil {
		t.Fatal("expected decode error")
	}
}
