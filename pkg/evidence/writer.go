package evidence

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ujjwalredd/Axiomeer/pkg/crypto"
)

// Receipt is the on-disk record of one execution.
type Receipt struct {
	RunID            int64       `json:"run_id"`
	AppID            string      `json:"app_id"`
	Task             string      `json:"task"`
	ClientID         string      `json:"client_id,omitempty"`
	OK               bool        `json:"ok"`
	RequireCitations bool        `json:"require_citations"`
	LatencyMs        *int        `json:"latency_ms,omitempty"`
	Quality          Quality     `json:"quality,omitempty"`
	QualityReasons   []string    `json:"quality_reasons,omitempty"`
	ValidationErrors []string    `json:"validation_errors"`
	Provenance       *Provenance `json:"provenance,omitempty"`
	OutputRef        string      `json:"output_ref,omitempty"`
	OutputSHA256     string      `json:"output_sha256,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`

	Signature *crypto.Signature `json:"signature,omitempty"`
}

// signingPayload is the receipt encoding covered by its signature.
func (r Receipt) signingPayload() ([]byte, error) {
	r.Signature = nil
	if r.ValidationErrors == nil {
		r.ValidationErrors = []string{}
	}
	return json.Marshal(r)
}

// VerifyReceipt checks the receipt signature against pub.
func VerifyReceipt(r Receipt, pub ed25519.PublicKey) error {
	payload, err := r.signingPayload()
	if err != nil {
		return err
	}
	return crypto.Verify(pub, payload, r.Signature)
}

// Writer stores receipts and content-addressed payload blobs.
type Writer struct {
	baseDir string
	signer  *crypto.Signer
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithSigner signs every receipt the writer stores.
func WithSigner(s *crypto.Signer) WriterOption {
	return func(w *Writer) { w.signer = s }
}

// NewWriter creates a writer rooted at baseDir.
func NewWriter(baseDir string, opts ...WriterOption) (*Writer, error) {
	if baseDir == "" {
		return nil, errors.New("base directory is required")
	}
	for _, dir := range []string{baseDir, filepath.Join(baseDir, "receipts"), filepath.Join(baseDir, "blobs")} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, err
		}
		if err := os.Chmod(dir, 0700); err != nil {
			return nil, err
		}
	}
	w := &Writer{baseDir: baseDir}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Dir returns the root directory.
func (w *Writer) Dir() string {
	return w.baseDir
}

// WriteBlob stores content under its sha256 and returns the relative
// reference and the hex digest. Identical content is stored once.
func (w *Writer) WriteBlob(content []byte) (string, string, error) {
	sum := sha256.Sum256(content)
	sha := hex.EncodeToString(sum[:])
	ref := filepath.Join("blobs", sha+".json")
	path := filepath.Join(w.baseDir, ref)
	if _, err := os.Stat(path); err == nil {
		return ref, sha, nil
	}
	if err := os.WriteFile(path, content, 0600); err != nil {
		return "", "", err
	}
	return ref, sha, nil
}

// WriteReceipt writes receipts/<run_id>.json, storing output as a blob
// when present, and returns the receipt path.
func (w *Writer) WriteReceipt(r Receipt, output any) (string, error) {
	if r.RunID <= 0 {
		return "", errors.New("run ID is required")
	}
	if output != nil {
		data, err := json.Marshal(output)
		if err != nil {
			return "", fmt.Errorf("encode output: %w", err)
		}
		if r.OutputRef, r.OutputSHA256, err = w.WriteBlob(data); err != nil {
			return "", fmt.Errorf("write output blob: %w", err)
		}
	}
	if r.ValidationErrors == nil {
		r.ValidationErrors = []string{}
	}
	if w.signer != nil {
		payload, err := r.signingPayload()
		if err != nil {
			return "", fmt.Errorf("encode receipt: %w", err)
		}
		r.Signature = w.signer.Sign(payload)
	}
	path := filepath.Join(w.baseDir, "receipts", fmt.Sprintf("%d.json", r.RunID))
	if err := writeJSON(path, r); err != nil {
		return "", err
	}
	return path, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
