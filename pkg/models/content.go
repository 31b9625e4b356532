package models

import (
	"time"

	"github.com/google/uuid"
)

// Content is the structured submission a CV is generated from. The tailoring
// stage may replace Summary, Experience, and Skills with role-adapted prose;
// everything else passes through to the renderer untouched.
type Content struct {
	Name       string   `json:"name"`
	Email      string   `json:"email,omitempty"`
	Phone      string   `json:"phone,omitempty"`
	Location   string   `json:"location,omitempty"`
	Summary    string   `json:"summary,omitempty"`
	Experience string   `json:"experience,omitempty"`
	Skills     []string `json:"skills,omitempty"`
	Education  string   `json:"education,omitempty"`
}

// ContentRecord links a job to its content and the target role it is tailored
// for. Mutated only by the tailoring stage, read by the rendering stage.
type ContentRecord struct {
	JobID      uuid.UUID `db:"job_id"      json:"job_id"`
	Content    Content   `db:"content"     json:"content"`
	TargetRole string    `db:"target_role" json:"target_role"`
	Tailored   bool      `db:"tailored"    json:"tailored"`
	UpdatedAt  time.Time `db:"updated_at"  json:"updated_at"`
}
