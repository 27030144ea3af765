package ocr

import (
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// recognizeTesseract runs Tesseract against a rasterized page image,
// grounded on the teacher's TesseractOCR.Process. Parameters are biased
// toward preserving inter-word spacing and a block segmentation mode suited
// to tables and diagrams, per spec §4.2, and configured bilingual
// (Portuguese + English).
func recognizeTesseract(imagePath string) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage("por", "eng"); err != nil {
		return "", fmt.Errorf("failed to set tesseract language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return "", fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := client.SetVariable("preserve_interword_spaces", "1"); err != nil {
		return "", fmt.Errorf("failed to set tesseract variable: %w", err)
	}
	if err := client.SetImage(imagePath); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract OCR failed: %w", err)
	}
	return text, nil
}
