package ocr

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// rasterizePage renders a single PDF page to a PNG file using pdftoppm
// (poppler-utils), since the PDF parsing library used for text extraction
// has no rasterizer of its own. scale maps to pdftoppm's -r (DPI) flag at a
// baseline of 100 DPI per unit of scale. A renderer failure at the
// configured scale falls back once to 1.0, per spec §4.3.
func rasterizePage(ctx context.Context, pdfPath, workDir string, page int, scale float64) (string, error) {
	path, err := rasterizePageAt(ctx, pdfPath, workDir, page, scale)
	if err != nil && scale != 1.0 {
		return rasterizePageAt(ctx, pdfPath, workDir, page, 1.0)
	}
	return path, err
}

func rasterizePageAt(ctx context.Context, pdfPath, workDir string, page int, scale float64) (string, error) {
	cmd := getPdftoppmCmd()
	if _, err := exec.LookPath(cmd); err != nil {
		return "", fmt.Errorf("%s not found (install poppler-utils or set PDFTOPPM_CMD): %w", cmd, err)
	}

	dpi := int(scale * 100)
	outputPrefix := filepath.Join(workDir, fmt.Sprintf("page-%d-%d", page, int(scale*10)))

	args := []string{
		"-png", "-r", fmt.Sprintf("%d", dpi), "-cropbox", "-aa", "no",
		"-f", fmt.Sprintf("%d", page), "-l", fmt.Sprintf("%d", page),
		pdfPath, outputPrefix,
	}
	c := exec.CommandContext(ctx, cmd, args...)
	if output, err := c.CombinedOutput(); err != nil {
		return "", fmt.Errorf("pdftoppm failed for page %d: %w - %s", page, err, string(output))
	}

	matches, err := filepath.Glob(outputPrefix + "*.png")
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("pdftoppm produced no image for page %d", page)
	}
	return matches[0], nil
}

func getPdftoppmCmd() string {
	if cmd := os.Getenv("PDFTOPPM_CMD"); cmd != "" {
		return cmd
	}
	return "pdftoppm"
}
