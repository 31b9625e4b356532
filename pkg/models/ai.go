// Package models contains shared data models used across the MorphCV codebase.
package models

import "context"

// TailorRequest is the input to a content-tailoring operation.
type TailorRequest struct {
	Content    Content
	TargetRole string // free-text description of the role the CV targets
}

// TailorResult carries the role-adapted prose for the sections the tailoring
// stage is allowed to rewrite. Empty fields mean "keep the original".
type TailorResult struct {
	Summary    string   `json:"summary"`
	Experience string   `json:"experience"`
	Skills     []string `json:"skills"`
}

// TextProvider is the core interface every generative-text integration must
// implement. Never call a specific vendor directly; always inject this.
type TextProvider interface {
	// Tailor rewrites the summary/experience/skills sections for the target role.
	Tailor(ctx context.Context, req TailorRequest) (TailorResult, error)
	// Name returns the provider identifier (e.g., "openai", "anthropic").
	Name() string
}
