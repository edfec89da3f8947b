package badger

import (
	"strings"
)

// Database Key Namespace Design
// ==============================
//
// BadgerDB is a key-value store, so records and their secondary indexes live
// under prefixed keys. Index keys carry the record ID as their last component
// and an empty value, so a prefix scan yields IDs directly.
//
// Components are separated by NUL: IDs (folder paths) and URLs may contain
// ':' or '/', but never NUL.
//
// Data Type          Prefix  Key Format                                  Value
// ============================================================================
// File Record        "f:"    f:<id>                                      FileRecord (JSON)
// Hash Index         "h:"    h:<hash>\0<0|1>\0<id>                       -
// URL Index          "u:"    u:<file_url>\0<id>                          -
// Thumbnail Index    "t:"    t:<thumbnail_url>\0<id>                     -
// Children Index     "c:"    c:<folder>\0<id>                            -
// Attachment Index   "a:"    a:<doctype>\0<name>\0<id>                   -
//
// Only non-folder records enter the hash and attachment indexes.

const (
	prefixFile       = "f:"
	prefixHash       = "h:"
	prefixURL        = "u:"
	prefixThumbnail  = "t:"
	prefixChild      = "c:"
	prefixAttachment = "a:"

	sep = "\x00"
)

func keyFile(id string) []byte {
	return []byte(prefixFile + id)
}

func privacyFlag(isPrivate bool) string {
	if isPrivate {
		return "1"
	}
	return "0"
}

func prefixHashScope(hash string, isPrivate bool) []byte {
	return []byte(prefixHash + hash + sep + privacyFlag(isPrivate) + sep)
}

func prefixURLValue(fileURL string) []byte {
	return []byte(prefixURL + fileURL + sep)
}

func prefixThumbnailValue(thumbURL string) []byte {
	return []byte(prefixThumbnail + thumbURL + sep)
}

func prefixChildren(folder string) []byte {
	return []byte(prefixChild + folder + sep)
}

func prefixAttachmentOwner(doctype, name string) []byte {
	return []byte(prefixAttachment + doctype + sep + name + sep)
}

// idFromIndexKey returns the trailing record ID of an index key.
func idFromIndexKey(key []byte) string {
	k := string(key)
	i := strings.LastIndex(k, sep)
	if i < 0 {
		return ""
	}
	return k[i+1:]
}
