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
	"strings"
)

// ReadReceipt loads receipts/<runID>.json from baseDir.
func ReadReceipt(baseDir string, runID int64) (Receipt, error) {
	var r Receipt
	data, err := os.ReadFile(filepath.Join(baseDir, "receipts", fmt.Sprintf("%d.json", runID)))
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("parse receipt: %w", err)
	}
	return r, nil
}

// VerifyStored checks that the receipt's output blob still hashes to the
// recorded digest and, when pub is non-nil, that the signature holds.
func VerifyStored(baseDir string, r Receipt, pub ed25519.PublicKey) error {
	if r.OutputRef != "" {
		path, err := safeJoin(baseDir, r.OutputRef)
		if err != nil {
			return fmt.Errorf("invalid output ref %q: %w", r.OutputRef, err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("missing output blob %s: %w", r.OutputRef, err)
		}
		sum := sha256.Sum256(data)
		if hex.EncodeToString(sum[:]) != r.OutputSHA256 {
			return fmt.Errorf("hash mismatch for %s", r.OutputRef)
		}
	}
	if pub == nil {
		return nil
	}
	return VerifyReceipt(r, pub)
}

func safeJoin(baseDir, rel string) (string, error) {
	if rel == "" || filepath.IsAbs(rel) {
		return "", errors.New("path must be relative")
	}
	clean := filepath.Clean(rel)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errors.New("path escapes base directory")
	}
	return filepath.Join(baseDir, clean), nil
}
