package adapters

import "context"

// Translator optionally rewrites extracted text into a target language before
// indexing. The pipeline treats translation as best-effort: a translator
// error indexes the original text.
type Translator interface {
	Name() string
	Translate(ctx context.Context, text, targetLang string) (string, error)
}

// PassthroughTranslator returns text unchanged. It stands in until a real
// translation service is wired and keeps the pipeline shape identical either
// way.
type PassthroughTranslator struct{}

// Name implements Translator.
func (PassthroughTranslator) Name() string { return "passthrough" }

// Translate implements Translator.
func (PassthroughTranslator) Translate(ctx context.Context, text, targetLang string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return text, nil
}
