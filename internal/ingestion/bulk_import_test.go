package ingestion

import (
	"context"
	"strings"
	"testing"
)

func TestBulkImportSkipsMalformedAndIncompleteLines(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(t, store)

	ndjson := strings.Join([]string{
		`{"id":"1","document":"x","embedding":[1,2,3]}`,
		`not json`,
		`{"id":"","document":"y","embedding":[1,2,3]}`,
		`{"id":"2","document":"z","embedding":[]}`,
		`{"id":"3","document":"w","embedding":[4,5,6]}`,
	}, "\n")

	imported, skipped, err := o.BulkImport(context.Background(), strings.NewReader(ndjson))
	if err != nil {
		t.Fatalf("BulkImport failed: %v", err)
	}
	if imported != 2 {
		t.Fatalf("expected 2 valid records imported, got %d", imported)
	}
	if skipped != 3 {
		t.Fatalf("expected 3 records skipped, got %d", skipped)
	}
	if len(store.added) != 2 {
		t.Fatalf("expected 2 chunks added to the store, got %d", len(store.added))
	}
}

func TestBulkImportEmptyStream(t *testing.T) {
	o := newTestOrchestrator(t, newFakeStore())
	imported, skipped, err := o.BulkImport(context.Background(), strings.NewReader(""))
	if err != nil {
		t.Fatalf("BulkImport failed: %v", err)
	}
	if imported != 0 || skipped != 0 {
		t.Fatalf("expected no records for an empty stream, got imported=%d skipped=%d", imported, skipped)
	}
}
