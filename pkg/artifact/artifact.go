// Package artifact records raw LLM outputs so every agent decision can be
// traced back to the exact text the model produced.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Artifact is an immutable model output.
type Artifact struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Adapter   string            `json:"adapter"`
	Model     string            `json:"model"`
	Prompt    string            `json:"-"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	Hash      string            `json:"hash"`
}

// New creates an Artifact with a fresh id and content hash.
func New(content, adapter, model, prompt string) *Artifact {
	a := &Artifact{
		ID:        uuid.NewString(),
		Content:   content,
		Adapter:   adapter,
		Model:     model,
		Prompt:    prompt,
		Metadata:  make(map[string]string),
		CreatedAt: time.Now().UTC(),
	}
	a.Hash = ContentHash(content, adapter, model)
	return a
}

// WithMetadata returns a copy of a with key set.
func (a *Artifact) WithMetadata(key, value string) *Artifact {
	cp := *a
	cp.Metadata = make(map[string]string, len(a.Metadata)+1)
	for k, v := range a.Metadata {
		cp.Metadata[k] = v
	}
	cp.Metadata[key] = value
	return &cp
}

// PromptHash is a short digest of the prompt that produced a.
func (a *Artifact) PromptHash() string {
	return shortHash(a.Prompt)
}

// ContentHash identifies an output independent of when it was produced.
func ContentHash(content, adapter, model string) string {
	return shortHash(content, adapter, model)
}

func shortHash(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
