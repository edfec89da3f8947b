package badger

import (
	"encoding/json"
	"fmt"

	"github.com/marmos91/dittofiles/pkg/metadata"
)

// Records are stored as JSON: human-readable when debugging the database and
// tolerant of added fields.

func encodeRecord(rec *metadata.FileRecord) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record %s: %w", rec.ID, err)
	}
	return data, nil
}

func decodeRecord(data []byte) (*metadata.FileRecord, error) {
	var rec metadata.FileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &rec, nil
}

// indexKeys returns every secondary index key for rec.
func indexKeys(rec *metadata.FileRecord) [][]byte {
	keys := make([][]byte, 0, 5)

	if rec.Folder != "" {
		keys = append(keys, append(prefixChildren(rec.Folder), rec.ID...))
	}
	if rec.FileURL != "" {
		keys = append(keys, append(prefixURLValue(rec.FileURL), rec.ID...))
	}
	if rec.ThumbnailURL != "" {
		keys = append(keys, append(prefixThumbnailValue(rec.ThumbnailURL), rec.ID...))
	}
	if !rec.IsFolder && rec.ContentHash != "" {
		keys = append(keys, append(prefixHashScope(rec.ContentHash, rec.IsPrivate), rec.ID...))
	}
	if !rec.IsFolder && rec.AttachedTo != nil {
		keys = append(keys, append(prefixAttachmentOwner(rec.AttachedTo.Doctype, rec.AttachedTo.Name), rec.ID...))
	}
	return keys
}
