package storage

import (
	"context"
	"fmt"
	"time"
)

// ReportPrefix groups archived daily run reports
const ReportPrefix = "reports/"

// StorageInterface archives run reports as named blobs
type StorageInterface interface {
	Store(ctx context.Context, name string, data []byte) error
	Retrieve(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// ReportName is the blob name of the report for a run started at t
func ReportName(t time.Time) string {
	return fmt.Sprintf("%sdaily-%s.json", ReportPrefix, t.UTC().Format("2006-01-02-15-04-05"))
}
