// Package extractor implements C3: per-page PDF text extraction that
// reconstructs reading order from glyph positions, weak-page detection, and
// selective-OCR orchestration.
package extractor

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	gopdf "github.com/Geek0x0/pdf"

	"github.com/adverant/nexus/manualqa/internal/errors"
	"github.com/adverant/nexus/manualqa/internal/logging"
	"github.com/adverant/nexus/manualqa/internal/ocr"
	"github.com/adverant/nexus/manualqa/internal/textutil"
)

// weakPageThreshold is the per-page character count below which a page is
// considered weak and a candidate for selective OCR.
const weakPageThreshold = 120

// scanLikeAvgCharsPerPage is the whole-document threshold: average
// characters per page below this makes the document scan-like.
const scanLikeAvgCharsPerPage = 50

// minCombinedChars is the floor below which extraction fails outright.
const minCombinedChars = 20

// yQuantizeStep groups glyphs into lines by this quantized Y step.
const yQuantizeStep = 2.0

// Result is C3's output contract.
type Result struct {
	Text              string
	NumPages          int
	Info              map[string]string
	Metadata          map[string]string
	OCRUsed           bool
	OCRChars          int
	OCRPartial        bool
	OCRPagesProcessed int
}

// Extractor parses PDFs page-by-page and orchestrates selective OCR.
type Extractor struct {
	ocr    *ocr.Engine
	logger *logging.Logger
	scale  float64
}

// New constructs an Extractor. scale is the default page-render scale for
// OCR, clamped to [1.0, 3.0] per spec §4.3.
func New(engine *ocr.Engine, logger *logging.Logger, scale float64) *Extractor {
	if scale < 1.0 {
		scale = 1.0
	}
	if scale > 3.0 {
		scale = 3.0
	}
	return &Extractor{ocr: engine, logger: logger, scale: scale}
}

// Extract runs the full per-page parse → weak-page detection → selective
// OCR → normalize pipeline described in spec §4.3.
func (e *Extractor) Extract(ctx context.Context, path string, taskID string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.NewExtractionError(taskID, "pdf file not readable", err)
	}
	if info.Size() == 0 {
		return nil, errors.NewExtractionError(taskID, "pdf file is empty (0 bytes)", nil)
	}

	f, reader, err := gopdf.Open(path)
	if err != nil {
		return nil, errors.NewExtractionError(taskID, "failed to parse pdf", err)
	}
	defer f.Close()

	numPages := reader.NumPage()
	if numPages == 0 {
		return nil, errors.NewExtractionError(taskID, "pdf has no pages", nil)
	}

	pageTexts := make([]string, numPages+1) // 1-indexed
	totalChars := 0
	weakPages := []int{}

	for n := 1; n <= numPages; n++ {
		select {
		case <-ctx.Done():
			return nil, errors.NewExtractionError(taskID, "extraction cancelled", ctx.Err())
		default:
		}
		page := reader.Page(n)
		text := reconstructReadingOrder(page.Content().Text)
		pageTexts[n] = text
		totalChars += len(text)
		if len(text) < weakPageThreshold {
			weakPages = append(weakPages, n)
		}
	}

	scanLike := float64(totalChars)/float64(numPages) < scanLikeAvgCharsPerPage

	result := &Result{NumPages: numPages, Info: map[string]string{}, Metadata: map[string]string{}}

	if len(weakPages) == 0 && !scanLike {
		result.Text = assemblePages(pageTexts, numPages, nil)
		result.Text = textutil.Normalize(result.Text)
		if len(result.Text) < minCombinedChars {
			return nil, errors.NewExtractionError(taskID, "extracted text below minimum length", nil)
		}
		return result, nil
	}

	pagesToOCR := weakPages
	if scanLike && len(weakPages) == 0 {
		pagesToOCR = allPages(numPages)
	}

	ocrResult, err := e.ocr.ProcessPages(ctx, path, pagesToOCR, e.scale)
	if err != nil {
		e.logger.Warn("OCR failed, falling back to parsed text", "task_id", taskID, "error", err.Error())
		result.Text = textutil.Normalize(assemblePages(pageTexts, numPages, nil))
		if len(result.Text) < minCombinedChars {
			return nil, errors.NewExtractionError(taskID, "extraction and OCR fallback both insufficient", err)
		}
		return result, nil
	}

	ocrPages := map[int]string{}
	for page, text := range ocrResult.Pages {
		ocrPages[page] = text
		result.OCRChars += len(text)
	}

	result.OCRUsed = true
	result.OCRPartial = ocrResult.Partial
	result.OCRPagesProcessed = len(ocrResult.Pages)
	result.Text = textutil.Normalize(assemblePages(pageTexts, numPages, ocrPages))

	if len(result.Text) < minCombinedChars {
		return nil, errors.NewExtractionError(taskID, "combined text below minimum length after OCR", nil)
	}

	return result, nil
}

// ExtractTextOnly runs the same per-page parse as Extract but never invokes
// OCR, even for weak or scan-like pages. The ingestion orchestrator falls
// back to this after a supervisory timeout on the OCR-enabled path, trading
// completeness for a bounded worst-case ingestion time.
func (e *Extractor) ExtractTextOnly(ctx context.Context, path string, taskID string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.NewExtractionError(taskID, "pdf file not readable", err)
	}
	if info.Size() == 0 {
		return nil, errors.NewExtractionError(taskID, "pdf file is empty (0 bytes)", nil)
	}

	f, reader, err := gopdf.Open(path)
	if err != nil {
		return nil, errors.NewExtractionError(taskID, "failed to parse pdf", err)
	}
	defer f.Close()

	numPages := reader.NumPage()
	if numPages == 0 {
		return nil, errors.NewExtractionError(taskID, "pdf has no pages", nil)
	}

	pageTexts := make([]string, numPages+1)
	for n := 1; n <= numPages; n++ {
		select {
		case <-ctx.Done():
			return nil, errors.NewExtractionError(taskID, "extraction cancelled", ctx.Err())
		default:
		}
		pageTexts[n] = reconstructReadingOrder(reader.Page(n).Content().Text)
	}

	result := &Result{NumPages: numPages, Info: map[string]string{}, Metadata: map[string]string{}}
	result.Text = textutil.Normalize(assemblePages(pageTexts, numPages, nil))
	if len(result.Text) < minCombinedChars {
		return nil, errors.NewExtractionError(taskID, "extracted text below minimum length", nil)
	}
	return result, nil
}

func allPages(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

// assemblePages joins per-page text under "--- Página N ---" markers,
// substituting OCR output under "--- Página N (OCR) ---" when present.
func assemblePages(pageTexts []string, numPages int, ocrPages map[int]string) string {
	var b strings.Builder
	for n := 1; n <= numPages; n++ {
		if ocrText, ok := ocrPages[n]; ok {
			fmt.Fprintf(&b, "--- Página %d (OCR) ---\n%s\n\n", n, ocrText)
			continue
		}
		fmt.Fprintf(&b, "--- Página %d ---\n%s\n\n", n, pageTexts[n])
	}
	return b.String()
}

// reconstructReadingOrder groups glyphs into lines by quantized Y, sorts
// lines top-to-bottom, sorts glyphs left-to-right within a line, and joins
// with single spaces — spec §4.3's exact algorithm.
func reconstructReadingOrder(glyphs []gopdf.Text) string {
	if len(glyphs) == 0 {
		return ""
	}

	lines := map[float64][]gopdf.Text{}
	for _, g := range glyphs {
		key := math.Round(g.Y/yQuantizeStep) * yQuantizeStep
		lines[key] = append(lines[key], g)
	}

	keys := make([]float64, 0, len(lines))
	for k := range lines {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(keys)))

	var b strings.Builder
	for _, k := range keys {
		line := lines[k]
		sort.Slice(line, func(i, j int) bool { return line[i].X < line[j].X })
		words := make([]string, 0, len(line))
		for _, g := range line {
			if strings.TrimSpace(g.S) != "" {
				words = append(words, strings.TrimSpace(g.S))
			}
		}
		if len(words) == 0 {
			continue
		}
		b.WriteString(strings.Join(words, " "))
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
