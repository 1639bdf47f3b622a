package ingest

import (
	"time"

	"github.com/djherbis/times"

	"github.com/Dirstral/ragmcp/internal/model"
)

// fileMetadata returns the source metadata shared by all loaders. The
// creation time is only recorded when the filesystem reports one.
func fileMetadata(path, mime string) map[string]string {
	meta := map[string]string{
		model.MetaSource: path,
		model.MetaMIME:   mime,
	}
	ts, err := times.Stat(path)
	if err != nil {
		return meta
	}
	meta[model.MetaModified] = ts.ModTime().UTC().Format(time.RFC3339)
	if ts.HasBirthTime() {
		meta[model.MetaCreated] = ts.BirthTime().UTC().Format(time.RFC3339)
	}
	return meta
}
