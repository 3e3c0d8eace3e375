package adapters

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/disintegration/imaging"

	"cloud-indexer/internal/doctypes"
	"cloud-indexer/internal/logging"
)

// maxOCRDimension bounds the longer image edge before OCR. Oversized scans
// are downsampled; tesseract accuracy is unaffected at this scale and memory
// stays bounded.
const maxOCRDimension = 3000

// OCRAdapter extracts text from images by shelling out to the tesseract
// binary. Images are normalized first: decoded, grayscaled and capped in size
// before being handed over.
type OCRAdapter struct {
	binary   string
	language string
	tempDir  string
}

// NewOCRAdapter locates the tesseract binary. Returns an error when the
// binary is not installed; callers then simply leave image support out of the
// registry.
func NewOCRAdapter(language, tempDir string) (*OCRAdapter, error) {
	binary, err := exec.LookPath("tesseract")
	if err != nil {
		return nil, fmt.Errorf("tesseract not found in PATH: %w", err)
	}
	if language == "" {
		language = "eng"
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &OCRAdapter{binary: binary, language: language, tempDir: tempDir}, nil
}

// Name implements ContentAdapter.
func (o *OCRAdapter) Name() string { return "ocr" }

// Supports implements ContentAdapter.
func (o *OCRAdapter) Supports(dt doctypes.DocType) bool {
	return dt == doctypes.DocTypeImage
}

// Extract normalizes the image and runs tesseract over it.
func (o *OCRAdapter) Extract(ctx context.Context, path string) (Extraction, error) {
	if err := ctx.Err(); err != nil {
		return Extraction{}, err
	}

	normalized, cleanup, err := o.normalize(path)
	if err != nil {
		return Extraction{}, err
	}
	defer cleanup()

	cmd := exec.CommandContext(ctx, o.binary, normalized, "stdout", "-l", o.language)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Extraction{}, fmt.Errorf("tesseract on %s: %w (%s)", path, err, stderr.String())
	}

	return Extraction{Text: stdout.String()}, nil
}

// normalize decodes, grayscales and size-caps the image, writing the result
// to a temp PNG. The returned cleanup removes it.
func (o *OCRAdapter) normalize(path string) (string, func(), error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", nil, fmt.Errorf("decoding image %s: %w", path, err)
	}

	img = imaging.Grayscale(img)

	bounds := img.Bounds()
	if bounds.Dx() > maxOCRDimension || bounds.Dy() > maxOCRDimension {
		img = imaging.Fit(img, maxOCRDimension, maxOCRDimension, imaging.Lanczos)
	}

	tmp, err := os.CreateTemp(o.tempDir, "ocr-*.png")
	if err != nil {
		return "", nil, fmt.Errorf("creating OCR temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if err := tmp.Close(); err != nil {
		logging.Warn("Closing OCR temp file %s: %v", tmpPath, err)
	}

	if err := imaging.Save(img, tmpPath); err != nil {
		os.Remove(tmpPath)
		return "", nil, fmt.Errorf("writing normalized image: %w", err)
	}

	cleanup := func() {
		if err := os.Remove(tmpPath); err != nil {
			logging.Warn("Removing OCR temp file %s: %v", filepath.Base(tmpPath), err)
		}
	}
	return tmpPath, cleanup, nil
}
