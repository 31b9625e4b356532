package aicore

import (
	"fmt"
	"strings"

	"github.com/morphcv/morphcv/pkg/models"
)

// BuildTailorPrompt renders the shared prompt used by every real provider.
// The model must answer with a JSON object holding summary, experience, and
// skills so the adapter can parse it without scraping prose.
func BuildTailorPrompt(req models.TailorRequest) string {
	var b strings.Builder
	b.WriteString("You are a professional CV writer. Rewrite the candidate's summary, ")
	b.WriteString("experience, and skills so they target the role described below. ")
	b.WriteString("Keep every claim grounded in the candidate's own material; never invent employers, dates, or credentials.\n\n")

	b.WriteString("TARGET ROLE:\n")
	b.WriteString(req.TargetRole)
	b.WriteString("\n\nCANDIDATE:\n")
	b.WriteString(formatContent(req.Content))

	b.WriteString("\n\nRespond with a single JSON object, no surrounding text:\n")
	b.WriteString(`{"summary": "...", "experience": "...", "skills": ["...", "..."]}`)
	return b.String()
}

func formatContent(c models.Content) string {
	var lines []string
	lines = append(lines, fmt.Sprintf("Name: %s", c.Name))
	if c.Summary != "" {
		lines = append(lines, "Summary:\n"+c.Summary)
	}
	if c.Experience != "" {
		lines = append(lines, "Experience:\n"+c.Experience)
	}
	if len(c.Skills) > 0 {
		lines = append(lines, "Skills: "+strings.Join(c.Skills, ", "))
	}
	if c.Education != "" {
		lines = append(lines, "Education:\n"+c.Education)
	}
	return strings.Join(lines, "\n")
}
