package idgen

import (
	"strings"

	"github.com/google/uuid"
)

// Prefixes used for entity ids.
const (
	PrefixUser          = "usr"
	PrefixAgent         = "agt"
	PrefixSession       = "ssn"
	PrefixTopic         = "tpc"
	PrefixMessage       = "msg"
	PrefixFile          = "file"
	PrefixChunk         = "chk"
	PrefixKnowledgeBase = "kb"
	PrefixAPIKey        = "ak"
)

// New returns "<prefix>_<32 hex chars>".
func New(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// HasPrefix reports whether id was generated with prefix.
func HasPrefix(id, prefix string) bool {
	return strings.HasPrefix(id, prefix+"_") && len(id) == len(prefix)+33
}
