package ingestion

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/adverant/nexus/manualqa/internal/errors"
	"github.com/adverant/nexus/manualqa/internal/vectorstore"
)

// BulkImport loads a previously exported NDJSON corpus (one vectorstore.Chunk
// per line, embeddings included) straight into the store, per spec §4.6:
// no re-embedding, since the export already carries vectors. Malformed
// lines are skipped and counted rather than aborting the whole import, so
// one corrupt record doesn't lose an otherwise-good snapshot.
func (o *Orchestrator) BulkImport(ctx context.Context, r io.Reader) (imported int, skipped int, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<26)

	var batch []vectorstore.Chunk
	const flushSize = 256

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := o.store.Add(ctx, batch); err != nil {
			return err
		}
		imported += len(batch)
		batch = batch[:0]
		return nil
	}

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var c vectorstore.Chunk
		if err := json.Unmarshal(line, &c); err != nil {
			skipped++
			continue
		}
		if c.ID == "" || len(c.Embedding) == 0 {
			skipped++
			continue
		}
		batch = append(batch, c)
		if len(batch) >= flushSize {
			if err := flush(); err != nil {
				return imported, skipped, errors.NewStorageFailedError("", err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return imported, skipped, errors.NewValidationError(fmt.Sprintf("failed to read import stream: %v", err), nil)
	}
	if err := flush(); err != nil {
		return imported, skipped, errors.NewStorageFailedError("", err)
	}

	o.logger.Info("bulk import complete", "imported", imported, "skipped", skipped)
	return imported, skipped, nil
}
