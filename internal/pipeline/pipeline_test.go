package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cloud-indexer/internal/adapters"
	"cloud-indexer/internal/database"
	"cloud-indexer/internal/doctypes"
	"cloud-indexer/internal/scanner"
	"cloud-indexer/internal/search"
)

func testVolume(mountPath string) database.Volume {
	return database.Volume{
		Name:      "docs",
		MountPath: mountPath,
		IndexName: "docs",
		Enabled:   true,
	}
}

func textCandidate(rel string) scanner.FileCandidate {
	return scanner.FileCandidate{
		Path:     rel,
		Size:     13,
		ModTime:  time.Now(),
		DocType:  doctypes.DocTypeText,
		MimeType: "text/plain",
	}
}

func newTestPipeline(t *testing.T, backend search.Backend, tr adapters.Translator, lang string) *Pipeline {
	t.Helper()
	reg, err := adapters.NewRegistry(adapters.NewTextAdapter(0))
	if err != nil {
		t.Fatal(err)
	}
	return New(backend, reg, tr, lang)
}

func TestIndexFileIndexesText(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "note.txt"), []byte("hello indexer"), 0o644); err != nil {
		t.Fatal(err)
	}

	mock := search.NewMockBackend()
	p := newTestPipeline(t, mock, nil, "")

	outcome, err := p.IndexFile(context.Background(), testVolume(dir), textCandidate("note.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if outcome != OutcomeIndexed {
		t.Fatalf("outcome = %s, want indexed", outcome)
	}

	doc, ok := mock.Get("docs", search.DocumentID("docs", "note.txt"))
	if !ok {
		t.Fatal("Document not stored")
	}
	if doc.Content != "hello indexer" {
		t.Errorf("Content = %q", doc.Content)
	}
	if doc.Title != "note.txt" {
		t.Errorf("Title = %q", doc.Title)
	}
	if doc.MimeType != "text/plain" {
		t.Errorf("MimeType = %q", doc.MimeType)
	}
}

func TestIndexFileSkipsUnsupportedType(t *testing.T) {
	mock := search.NewMockBackend()
	p := newTestPipeline(t, mock, nil, "")

	fc := textCandidate("photo.png")
	fc.DocType = doctypes.DocTypeImage

	outcome, err := p.IndexFile(context.Background(), testVolume(t.TempDir()), fc)
	if err != nil {
		t.Fatalf("Skips must not surface an error, got %v", err)
	}
	if outcome != OutcomeSkipped {
		t.Fatalf("outcome = %s, want skipped", outcome)
	}
	if mock.IndexCalls() != 0 {
		t.Errorf("Skipped file must not reach the backend, got %d calls", mock.IndexCalls())
	}
}

func TestIndexFileFailsOnMissingFile(t *testing.T) {
	mock := search.NewMockBackend()
	p := newTestPipeline(t, mock, nil, "")

	outcome, err := p.IndexFile(context.Background(), testVolume(t.TempDir()), textCandidate("gone.txt"))
	if err == nil {
		t.Fatal("Expected extraction error")
	}
	if outcome != OutcomeFailed {
		t.Fatalf("outcome = %s, want failed", outcome)
	}
}

func TestIndexFileFailsOnBackendError(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "note.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	mock := search.NewMockBackend()
	mock.FailWith = errors.New("index unavailable")
	p := newTestPipeline(t, mock, nil, "")

	outcome, err := p.IndexFile(context.Background(), testVolume(dir), textCandidate("note.txt"))
	if err == nil {
		t.Fatal("Expected backend error")
	}
	if outcome != OutcomeFailed {
		t.Fatalf("outcome = %s, want failed", outcome)
	}
}

type upperTranslator struct{ fail bool }

func (u upperTranslator) Name() string { return "upper" }
func (u upperTranslator) Translate(_ context.Context, text, _ string) (string, error) {
	if u.fail {
		return "", errors.New("service down")
	}
	out := make([]byte, len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out), nil
}

func TestIndexFileTranslates(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "note.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	mock := search.NewMockBackend()
	p := newTestPipeline(t, mock, upperTranslator{}, "en")

	if _, err := p.IndexFile(context.Background(), testVolume(dir), textCandidate("note.txt")); err != nil {
		t.Fatal(err)
	}

	doc, _ := mock.Get("docs", search.DocumentID("docs", "note.txt"))
	if doc.Content != "HELLO" {
		t.Errorf("Content = %q, want translated text", doc.Content)
	}
}

func TestIndexFileTranslationFailureIndexesOriginal(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "note.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	mock := search.NewMockBackend()
	p := newTestPipeline(t, mock, upperTranslator{fail: true}, "en")

	outcome, err := p.IndexFile(context.Background(), testVolume(dir), textCandidate("note.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if outcome != OutcomeIndexed {
		t.Fatalf("outcome = %s, want indexed", outcome)
	}

	doc, _ := mock.Get("docs", search.DocumentID("docs", "note.txt"))
	if doc.Content != "hello" {
		t.Errorf("Content = %q, want original text", doc.Content)
	}
}
