package doctypes

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDocType(t *testing.T) {
	tests := []struct {
		ext  string
		want DocType
	}{
		{".txt", DocTypeText},
		{".md", DocTypeText},
		{".PDF", DocTypeDocument},
		{".docx", DocTypeDocument},
		{".png", DocTypeImage},
		{".JPEG", DocTypeImage},
		{".exe", DocTypeOther},
		{"", DocTypeOther},
	}

	for _, tt := range tests {
		if got := GetDocType(tt.ext); got != tt.want {
			t.Errorf("GetDocType(%q) = %q, want %q", tt.ext, got, tt.want)
		}
	}
}

func TestGetMimeType(t *testing.T) {
	if got := GetMimeType(".pdf"); got != "application/pdf" {
		t.Errorf("GetMimeType(.pdf) = %q", got)
	}

	if got := GetMimeType(".TXT"); got != "text/plain" {
		t.Errorf("GetMimeType(.TXT) = %q", got)
	}

	if got := GetMimeType(".zzz"); got != "application/octet-stream" {
		t.Errorf("GetMimeType(.zzz) = %q", got)
	}
}

func TestClassifyKnownExtension(t *testing.T) {
	dt, mime := Classify("/data/docs/report.pdf")
	if dt != DocTypeDocument {
		t.Errorf("Classify(report.pdf) type = %q, want %q", dt, DocTypeDocument)
	}
	if mime != "application/pdf" {
		t.Errorf("Classify(report.pdf) mime = %q", mime)
	}
}

func TestClassifySniffsUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.data")
	if err := os.WriteFile(path, []byte("plain text content here\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	dt, _ := Classify(path)
	if dt != DocTypeText {
		t.Errorf("Classify(text file with unknown ext) = %q, want %q", dt, DocTypeText)
	}
}

func TestClassifyMissingFile(t *testing.T) {
	dt, mime := Classify(filepath.Join(t.TempDir(), "gone.bin"))
	if dt != DocTypeOther {
		t.Errorf("Classify(missing) type = %q, want other", dt)
	}
	if mime != "application/octet-stream" {
		t.Errorf("Classify(missing) mime = %q", mime)
	}
}
