package domain

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Device exports name their files with a numeric identifier prefix, e.g.
// "1234567890_ACTIVITY.fit". That number is the stable activity identity.
var fileIDPattern = regexp.MustCompile(`^(\d+).*\.\S+$`)

// ActivityID derives the deterministic activity identifier for a source file.
// Re-importing the same file always yields the same ID. Files without a
// numeric prefix fall back to a UUIDv5 of the lowercased base name.
func ActivityID(path string) string {
	base := filepath.Base(path)
	if m := fileIDPattern.FindStringSubmatch(base); m != nil {
		return m[1]
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(strings.ToLower(base))).String()
}
