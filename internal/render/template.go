package render

import "fmt"

// Template is a closed enumeration of document variants. Identifiers are
// resolved once at job creation; there is no runtime file lookup and no
// silent fallback.
type Template string

const (
	TemplateClassic Template = "classic"
	TemplateModern  Template = "modern"
	TemplateCompact Template = "compact"
)

// ParseTemplate maps a caller-supplied identifier to a known variant.
func ParseTemplate(s string) (Template, error) {
	switch Template(s) {
	case TemplateClassic, TemplateModern, TemplateCompact:
		return Template(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTemplate, s)
	}
}

// Valid reports whether t is one of the known variants.
func (t Template) Valid() bool {
	_, err := ParseTemplate(string(t))
	return err == nil
}

const classicSource = `\documentclass[11pt,a4paper,sans]{moderncv}
\moderncvstyle{classic}
\moderncvcolor{blue}
\usepackage[scale=0.75]{geometry}
\usepackage[utf8]{inputenc}

\name{[NAME]}{\space}
\phone[mobile]{[PHONE]}
\email{[EMAIL]}
\address{[LOCATION]}{\space}{\space}

\begin{document}
\makecvtitle

\section{Professional Summary}
[SUMMARY]

\section{Experience}
[EXPERIENCE]

\section{Skills}
\cvitem{}{[SKILLS]}

\section{Education}
[EDUCATION]

\end{document}
`

const modernSource = `\documentclass[11pt,a4paper,sans]{moderncv}
\moderncvstyle{banking}
\moderncvcolor{black}
\usepackage[scale=0.8]{geometry}
\usepackage[utf8]{inputenc}

\name{[NAME]}{\space}
\phone[mobile]{[PHONE]}
\email{[EMAIL]}
\address{[LOCATION]}{\space}{\space}

\begin{document}
\makecvtitle

\section{Summary}
[SUMMARY]

\section{Experience}
[EXPERIENCE]

\section{Skills}
\cvitem{}{[SKILLS]}

\section{Education}
[EDUCATION]

\end{document}
`

const compactSource = `\documentclass[10pt,a4paper]{article}
\usepackage[margin=1.5cm]{geometry}
\usepackage[utf8]{inputenc}
\pagestyle{empty}

\begin{document}

\begin{center}
{\LARGE \textbf{[NAME]}}\\[2pt]
[EMAIL] \textbar{} [PHONE] \textbar{} [LOCATION]
\end{center}

\section*{Summary}
[SUMMARY]

\section*{Experience}
[EXPERIENCE]

\section*{Skills}
[SKILLS]

\section*{Education}
[EDUCATION]

\end{document}
`

// source returns the markup for the variant. Callers must have validated t.
func (t Template) source() string {
	switch t {
	case TemplateClassic:
		return classicSource
	case TemplateModern:
		return modernSource
	case TemplateCompact:
		return compactSource
	default:
		return ""
	}
}
