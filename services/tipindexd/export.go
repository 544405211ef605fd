package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

type tipParquetRow struct {
	ID           string `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Creator      string `parquet:"name=creator, type=BYTE_ARRAY, convertedtype=UTF8"`
	Supporter    string `parquet:"name=supporter, type=BYTE_ARRAY, convertedtype=UTF8"`
	Amount       string `parquet:"name=amount, type=BYTE_ARRAY, convertedtype=UTF8"`
	Fee          string `parquet:"name=fee, type=BYTE_ARRAY, convertedtype=UTF8"`
	CreatorShare string `parquet:"name=creator_share, type=BYTE_ARRAY, convertedtype=UTF8"`
	CollabShare  string `parquet:"name=collab_share, type=BYTE_ARRAY, convertedtype=UTF8"`
	Message      string `parquet:"name=message, type=BYTE_ARRAY, convertedtype=UTF8"`
	ReceivedAt   string `parquet:"name=received_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// ExportTips writes the full tip index to a Parquet file for analytics.
// Amounts stay as decimal strings so base-unit values survive intact.
func ExportTips(ctx context.Context, store *SQLiteStore, path string) (int, error) {
	tips, err := store.AllTips(ctx)
	if err != nil {
		return 0, fmt.Errorf("tipindexd: load tips: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("tipindexd: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(tipParquetRow), 1)
	if err != nil {
		file.Close()
		return 0, fmt.Errorf("tipindexd: parquet schema: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, tip := range tips {
		row := &tipParquetRow{
			ID:           tip.ID,
			Creator:      tip.Creator,
			Supporter:    tip.Supporter,
			Amount:       tip.Amount,
			Fee:          tip.Fee,
			CreatorShare: tip.CreatorShare,
			CollabShare:  tip.CollabShare,
			Message:      tip.Message,
			ReceivedAt:   tip.ReceivedAt.UTC().Format(time.RFC3339),
		}
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			file.Close()
			return 0, fmt.Errorf("tipindexd: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return 0, fmt.Errorf("tipindexd: parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return 0, fmt.Errorf("tipindexd: close parquet file: %w", err)
	}
	return len(tips), nil
}
