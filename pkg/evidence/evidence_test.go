package evidence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/ujjwalredd/Axiomeer/pkg/crypto"
)

func TestValidate(t *testing.T) {
	good := map[string]any{
		"answer":       "Sunny",
		"citations":    []any{"https://api.example.com/weather"},
		"retrieved_at": "2026-01-01T00:00:00Z",
	}

	tests := []struct {
		name    string
		payload any
		require bool
		want    []string
	}{
		{name: "good payload", payload: good, require: true, want: nil},
		{name: "not an object", payload: []any{"x"}, require: false, want: []string{MsgNotObject}},
		{name: "string payload", payload: "ok", require: true, want: []string{MsgNotObject}},
		{name: "citations not required", payload: map[string]any{"answer": "x"}, require: false, want: nil},
		{name: "missing both", payload: map[string]any{"answer": "x"}, require: true, want: []string{MsgCitationsMissing, MsgTimestampMissing}},
		{
			name:    "empty citation list",
			payload: map[string]any{"citations": []any{}, "retrieved_at": "now"},
			require: true,
			want:    []string{MsgCitationsMissing},
		},
		{
			name:    "blank citation",
			payload: map[string]any{"citations": []any{"a", " "}, "retrieved_at": "now"},
			require: true,
			want:    []string{MsgCitationsMissing},
		},
		{
			name:    "non-string citation",
			payload: map[string]any{"citations": []any{1.0}, "retrieved_at": "now"},
			require: true,
			want:    []string{MsgCitationsMissing},
		},
		{
			name:    "blank timestamp",
			payload: map[string]any{"citations": []any{"a"}, "retrieved_at": "  "},
			require: true,
			want:    []string{MsgTimestampMissing},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(tt.payload, tt.require)
			if len(got) != len(tt.want) {
				t.Fatalf("Validate() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Validate()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestValidateRemovingFieldsFails(t *testing.T) {
	for _, field := range []string{"citations", "retrieved_at"} {
		payload := map[string]any{"citations": []any{"src"}, "retrieved_at": "2026-01-01T00:00:00Z"}
		delete(payload, field)
		if errs := Validate(payload, true); len(errs) == 0 {
			t.Errorf("removing %s should fail validation", field)
		}
	}
}

func TestAssess(t *testing.T) {
	tests := []struct {
		name    string
		payload any
		want    Quality
		reason  string
	}{
		{name: "not object", payload: "x", want: QualityLow, reason: "Evidence is not a JSON object."},
		{name: "marked mock", payload: map[string]any{"quality": "Mock", "citations": []any{"a"}}, want: QualityLow, reason: "Provider marked quality=mock."},
		{name: "simulated answer", payload: map[string]any{"answer": "This is SIMULATED", "citations": []any{"a"}}, want: QualityLow, reason: "Answer text indicates mock/simulated data."},
		{name: "no citations", payload: map[string]any{"answer": "fine"}, want: QualityLow, reason: "No citations found."},
		{name: "high", payload: map[string]any{"answer": "fine", "citations": []any{"a"}, "quality": "verified"}, want: QualityHigh, reason: "Evidence appears non-mock and contains citations."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reasons := Assess(tt.payload)
			if got != tt.want {
				t.Fatalf("Assess() = %s, want %s (%v)", got, tt.want, reasons)
			}
			if len(reasons) == 0 || reasons[0] != tt.reason {
				t.Errorf("reasons = %v, want first %q", reasons, tt.reason)
			}
		})
	}
}

func TestAssessCollectsAllReasons(t *testing.T) {
	_, reasons := Assess(map[string]any{"answer": "dummy values"})
	if len(reasons) != 2 {
		t.Fatalf("reasons = %v, want 2", reasons)
	}
}

func TestProvenanceFrom(t *testing.T) {
	p := ProvenanceFrom(map[string]any{
		"citations":    []any{"https://a", "", 3.0, "https://b"},
		"retrieved_at": "2026-01-01T00:00:00Z",
	})
	if len(p.Sources) != 2 || p.Sources[1] != "https://b" {
		t.Errorf("Sources = %v", p.Sources)
	}
	if p.RetrievedAt != "2026-01-01T00:00:00Z" {
		t.Errorf("RetrievedAt = %q", p.RetrievedAt)
	}
	if p.Notes == nil {
		t.Error("Notes should be an empty list, not nil")
	}

	empty := ProvenanceFrom(nil)
	if empty.Sources == nil || len(empty.Sources) != 0 {
		t.Errorf("empty Sources = %v", empty.Sources)
	}
}

func TestReceiptWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "evidence")
	writer, err := NewWriter(dir)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	latency := 120
	output := map[string]any{"answer": "Sunny", "citations": []any{"https://a"}}
	path, err := writer.WriteReceipt(Receipt{
		RunID:     7,
		AppID:     "weather_rt",
		Task:      "weather",
		OK:        true,
		LatencyMs: &latency,
		Quality:   QualityHigh,
		CreatedAt: time.Now().UTC(),
	}, output)
	if err != nil {
		t.Fatalf("write receipt: %v", err)
	}
	if filepath.Base(path) != "7.json" {
		t.Errorf("receipt path = %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read receipt: %v", err)
	}
	var got Receipt
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	if got.OutputSHA256 == "" || got.OutputRef == "" {
		t.Fatalf("output blob not referenced: %+v", got)
	}
	if got.ValidationErrors == nil {
		t.Error("validation_errors should encode as an empty list")
	}
	if _, err := os.Stat(filepath.Join(dir, got.OutputRef)); err != nil {
		t.Fatalf("missing blob: %v", err)
	}

	// Same output, same blob.
	ref, sha, err := writer.WriteBlob(mustJSON(t, output))
	if err != nil {
		t.Fatalf("write blob: %v", err)
	}
	if ref != got.OutputRef || sha != got.OutputSHA256 {
		t.Errorf("blob not content addressed: %s/%s vs %s/%s", ref, sha, got.OutputRef, got.OutputSHA256)
	}

	if runtime.GOOS != "windows" {
		assertPerm(t, dir, 0700)
		assertPerm(t, filepath.Join(dir, "receipts"), 0700)
		assertPerm(t, filepath.Join(dir, "blobs"), 0700)
		assertPerm(t, path, 0600)
	}
}

func TestReceiptWriterRequiresRunID(t *testing.T) {
	writer, err := NewWriter(t.TempDir())
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if _, err := writer.WriteReceipt(Receipt{AppID: "x"}, nil); err == nil {
		t.Fatal("expected error for missing run ID")
	}
	if _, err := NewWriter(""); err == nil {
		t.Fatal("expected error for empty base dir")
	}
}

func TestReceiptSignature(t *testing.T) {
	keyDir := filepath.Join(t.TempDir(), "keys")
	signer, err := crypto.LoadSigner(keyDir, "receipts")
	if err != nil {
		t.Fatalf("load signer: %v", err)
	}
	writer, err := NewWriter(t.TempDir(), WithSigner(signer))
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	path, err := writer.WriteReceipt(Receipt{
		RunID:     3,
		AppID:     "calculator",
		Task:      "2+2",
		OK:        true,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}, map[string]any{"answer": "4"})
	if err != nil {
		t.Fatalf("write receipt: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read receipt: %v", err)
	}
	var got Receipt
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	if got.Signature == nil || got.Signature.KeyID != "receipts" {
		t.Fatalf("signature = %+v", got.Signature)
	}

	// A reloaded signer reuses the persisted key.
	pub, err := crypto.LoadPublicKey(keyDir, "receipts")
	if err != nil {
		t.Fatalf("load public key: %v", err)
	}
	if err := VerifyReceipt(got, pub); err != nil {
		t.Fatalf("verify: %v", err)
	}

	got.OK = false
	if err := VerifyReceipt(got, pub); err == nil {
		t.Fatal("expected tampered receipt to fail verification")
	}

	got.OK = true
	got.Signature = nil
	if err := VerifyReceipt(got, pub); err == nil {
		t.Fatal("expected unsigned receipt to fail verification")
	}
}

func TestVerifyStored(t *testing.T) {
	dir := t.TempDir()
	keyDir := filepath.Join(t.TempDir(), "keys")
	signer, err := crypto.LoadSigner(keyDir, "receipts")
	if err != nil {
		t.Fatalf("load signer: %v", err)
	}
	writer, err := NewWriter(dir, WithSigner(signer))
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if _, err := writer.WriteReceipt(Receipt{RunID: 9, AppID: "wikipedia", OK: true}, map[string]any{"answer": "Paris"}); err != nil {
		t.Fatalf("write receipt: %v", err)
	}

	r, err := ReadReceipt(dir, 9)
	if err != nil {
		t.Fatalf("read receipt: %v", err)
	}
	if err := VerifyStored(dir, r, signer.PublicKey()); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := VerifyStored(dir, r, nil); err != nil {
		t.Fatalf("verify without key: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, r.OutputRef), []byte(`{"answer":"Lyon"}`), 0600); err != nil {
		t.Fatalf("tamper blob: %v", err)
	}
	if err := VerifyStored(dir, r, nil); err == nil {
		t.Fatal("expected hash mismatch")
	}

	r.OutputRef = "../outside.json"
	if err := VerifyStored(dir, r, nil); err == nil {
		t.Fatal("expected escaping ref to be rejected")
	}

	if _, err := ReadReceipt(dir, 404); err == nil {
		t.Fatal("expected missing receipt error")
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func assertPerm(t *testing.T, path string, want os.FileMode) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	if got := info.Mode().Perm(); got != want {
		t.Errorf("%s perm = %v, want %v", path, got, want)
	}
}
