package adapter

import "github.com/ujjwalredd/Axiomeer/pkg/artifact"

// Usage captures normalized token usage.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response wraps an adapter output and optional usage data.
type Response struct {
	Artifact *artifact.Artifact
	Usage    *Usage
}

func newUsage(prompt, completion int) *Usage {
	return &Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}
