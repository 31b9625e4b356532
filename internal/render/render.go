// Package render is the deterministic template-fill stage: it substitutes
// content fields into a closed set of document templates, escaping markup
// reserved characters. It performs no I/O and holds no state.
package render

import (
	"strings"

	"github.com/morphcv/morphcv/pkg/models"
)

// latexEscaper rewrites characters reserved by LaTeX so user text cannot
// break out of its placeholder. Backslash must be handled first, which
// strings.Replacer guarantees by single-pass semantics.
var latexEscaper = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`&`, `\&`,
	`%`, `\%`,
	`$`, `\$`,
	`#`, `\#`,
	`_`, `\_`,
	`{`, `\{`,
	`}`, `\}`,
	`~`, `\textasciitilde{}`,
	`^`, `\textasciicircum{}`,
)

// Escape sanitizes a single content value for inclusion in LaTeX markup.
func Escape(s string) string {
	return latexEscaper.Replace(s)
}

// Render fills the template with the content record's fields. Name and email
// are required; everything else substitutes as empty when absent. Errors are
// input defects and must not be retried.
func Render(t Template, content models.Content) (string, error) {
	src := t.source()
	if src == "" {
		return "", ErrUnknownTemplate
	}
	if strings.TrimSpace(content.Name) == "" {
		return "", &MissingFieldError{Field: "name"}
	}
	if strings.TrimSpace(content.Email) == "" {
		return "", &MissingFieldError{Field: "email"}
	}

	r := strings.NewReplacer(
		"[NAME]", Escape(content.Name),
		"[EMAIL]", Escape(content.Email),
		"[PHONE]", Escape(content.Phone),
		"[LOCATION]", Escape(content.Location),
		"[SUMMARY]", Escape(content.Summary),
		"[EXPERIENCE]", Escape(content.Experience),
		"[SKILLS]", Escape(strings.Join(content.Skills, ", ")),
		"[EDUCATION]", Escape(content.Education),
	)
	return r.Replace(src), nil
}
