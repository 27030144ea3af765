package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestStripDiskPrefixRecoversOriginalName(t *testing.T) {
	got := stripDiskPrefix("1700000000000-ab12cd34-manual name.pdf")
	if got != "manual name.pdf" {
		t.Fatalf("expected original filename to be recovered, got %q", got)
	}
}

func TestStripDiskPrefixLeavesUnprefixedNameUnchanged(t *testing.T) {
	got := stripDiskPrefix("manual.pdf")
	if got != "manual.pdf" {
		t.Fatalf("expected an unprefixed name to pass through unchanged, got %q", got)
	}
}

func TestReindexDryRunReportsMatchesWithoutReprocessing(t *testing.T) {
	o := newTestOrchestrator(t, newFakeStore())
	pdfDir := filepath.Join(o.cfg.PDFPath, "pdfs")
	if err := os.MkdirAll(pdfDir, 0o755); err != nil {
		t.Fatalf("failed to create pdf dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(pdfDir, "1-aaaaaaaa-inverter-manual.pdf"), []byte("%PDF"), 0o644); err != nil {
		t.Fatalf("failed to write fixture pdf: %v", err)
	}
	if err := os.WriteFile(filepath.Join(pdfDir, "2-bbbbbbbb-unrelated.pdf"), []byte("%PDF"), 0o644); err != nil {
		t.Fatalf("failed to write fixture pdf: %v", err)
	}

	result, err := o.Reindex(context.Background(), ReindexRequest{Pattern: "inverter", DryRun: true})
	if err != nil {
		t.Fatalf("Reindex failed: %v", err)
	}
	if len(result.Matched) != 1 || result.Matched[0] != "inverter-manual.pdf" {
		t.Fatalf("expected only the matching source, got %v", result.Matched)
	}
	if len(result.Reprocessed) != 0 {
		t.Fatalf("expected a dry run to reprocess nothing, got %v", result.Reprocessed)
	}
}

func TestReindexRejectsInvalidPattern(t *testing.T) {
	o := newTestOrchestrator(t, newFakeStore())
	_, err := o.Reindex(context.Background(), ReindexRequest{Pattern: "(unclosed"})
	if err == nil {
		t.Fatalf("expected an error for an invalid regex pattern")
	}
}

func TestReindexMissingPDFDirReturnsEmptyResult(t *testing.T) {
	o := newTestOrchestrator(t, newFakeStore())
	result, err := o.Reindex(context.Background(), ReindexRequest{Pattern: ".*"})
	if err != nil {
		t.Fatalf("Reindex failed: %v", err)
	}
	if len(result.Matched) != 0 {
		t.Fatalf("expected no matches when the pdf directory does not exist, got %v", result.Matched)
	}
}
