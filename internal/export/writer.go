package export

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"github.com/polydoc/polydoc/internal"
)

// Format selects the output file type.
type Format string

const (
	FormatText Format = "txt"
	FormatHTML Format = "html"
)

// ParseFormat validates a user-supplied format string.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatText:
		return FormatText, nil
	case FormatHTML:
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s (supported: txt, html)", s)
	}
}

var htmlTemplate = template.Must(template.New("export").Parse(`<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
{{range .Paragraphs}}<p>{{.}}</p>
{{end}}</body>
</html>
`))

type htmlDocument struct {
	Lang       string
	Title      string
	Paragraphs []string
}

// WriteFiles writes one file per language into outputDir, named
// <project>_<lang>.<ext>. It returns the paths written.
func WriteFiles(outputDir, projectName string, texts map[string]string, langs []string, format Format) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	base := internal.SanitizeFilename(projectName)
	if base == "" {
		base = "project"
	}

	var paths []string
	for _, lang := range langs {
		name := fmt.Sprintf("%s_%s.%s", base, internal.SanitizeFilename(lang), format)
		path := filepath.Join(outputDir, name)

		var err error
		switch format {
		case FormatHTML:
			err = writeHTML(path, projectName, lang, texts[lang])
		default:
			err = os.WriteFile(path, []byte(texts[lang]), 0644)
		}
		if err != nil {
			return paths, fmt.Errorf("failed to write %s export: %w", lang, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeHTML(path, title, lang, text string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var paragraphs []string
	for _, p := range strings.Split(text, chunkSeparator) {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return htmlTemplate.Execute(f, htmlDocument{
		Lang:       lang,
		Title:      fmt.Sprintf("%s (%s)", title, lang),
		Paragraphs: paragraphs,
	})
}
