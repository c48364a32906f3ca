package storage

import (
	"context"
	"fmt"

	"datacleaner/internal/dataset"
)

// DefaultBatchSize is the number of rows per InsertRows call when none is set.
const DefaultBatchSize = 1000

// Lineage identifies where loaded rows came from.
type Lineage struct {
	SourceFile string
	RunID      string
}

// Load creates table if needed and appends every row of ds with lineage
// values. It returns the number of rows the backend reported inserted.
//
// Edge cases:
//   - An empty dataset still creates the table and inserts nothing.
//   - batchSize <= 0 means DefaultBatchSize.
//   - A failed batch stops the load; earlier batches stay committed.
func Load(ctx context.Context, repo Repository, table string, ds *dataset.Dataset, lin Lineage, batchSize int) (int64, error) {
	spec := TableFor(table, ds)
	if err := spec.Validate(); err != nil {
		return 0, err
	}
	if err := repo.EnsureTable(ctx, spec); err != nil {
		return 0, fmt.Errorf("ensure table %s: %w", table, err)
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	columns := spec.ColumnNames()
	var total int64
	for start := 0; start < ds.Len(); start += batchSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		end := min(start+batchSize, ds.Len())

		rows := make([][]any, 0, end-start)
		for i := start; i < end; i++ {
			rows = append(rows, append(ds.Row(i), lin.SourceFile, lin.RunID))
		}
		n, err := repo.InsertRows(ctx, table, columns, rows)
		total += n
		if err != nil {
			return total, fmt.Errorf("insert rows %d-%d into %s: %w", start, end-1, table, err)
		}
	}
	return total, nil
}
