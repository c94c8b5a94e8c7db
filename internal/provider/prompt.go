package provider

import (
	"fmt"
	"strings"

	"github.com/polydoc/polydoc/internal/store"
)

// systemPrompt fixes the model's role for translation requests.
const systemPrompt = "You are a professional translator. Output only the translation, with no explanations, notes or quotation marks."

// Request describes one chunk translation.
type Request struct {
	Text               string
	SourceLang         string // ISO code or "auto"
	TargetLang         string
	Style              store.TranslationStyle
	PreserveFormatting bool
}

// styleDirective maps a translation style to its tone instruction. The
// mapping is a pure function: the same style always yields the same
// instruction text.
func styleDirective(style store.TranslationStyle) string {
	switch style {
	case store.StyleCasual:
		return "Use a casual, conversational tone."
	case store.StyleLiterary:
		return "Use an expressive, literary tone that preserves imagery and rhythm."
	case store.StyleTechnical:
		return "Use precise technical language and keep terminology consistent."
	default:
		return "Use a formal, professional tone."
	}
}

// formatDirective maps the preserve-formatting flag to its instruction.
func formatDirective(preserve bool) string {
	if preserve {
		return "Preserve the original structure, line breaks and paragraph boundaries."
	}
	return "Reflow the text into natural paragraphs for the target language."
}

// buildTranslationPrompt renders the user prompt for a translation
// request. Deterministic for identical requests.
func buildTranslationPrompt(req Request) string {
	var b strings.Builder
	if req.SourceLang == "" || req.SourceLang == "auto" {
		fmt.Fprintf(&b, "Translate the following text to %s.\n", req.TargetLang)
	} else {
		fmt.Fprintf(&b, "Translate the following text from %s to %s.\n", req.SourceLang, req.TargetLang)
	}
	b.WriteString(styleDirective(req.Style))
	b.WriteString("\n")
	b.WriteString(formatDirective(req.PreserveFormatting))
	b.WriteString("\n\nText:\n")
	b.WriteString(req.Text)
	return b.String()
}

// detectSystemPrompt and buildDetectPrompt serve language detection.
const detectSystemPrompt = "You are a language identification assistant. Respond with only an ISO 639-1 language code."

func buildDetectPrompt(text string) string {
	return fmt.Sprintf("Identify the language of the following text. Respond with only the two-letter ISO 639-1 code.\n\nText:\n%s", text)
}

// qualitySystemPrompt and buildQualityPrompt serve quality assessment.
const qualitySystemPrompt = "You are a translation quality evaluator. Score each axis from 0 to 100 and answer in the exact format requested."

func buildQualityPrompt(original, translated, targetLang string) string {
	return fmt.Sprintf(`Evaluate the quality of this translation into %s.

Original:
%s

Translation:
%s

Answer with exactly four lines in this format:
accuracy: <0-100>
fluency: <0-100>
consistency: <0-100>
cultural_adaptation: <0-100>`, targetLang, original, translated)
}
