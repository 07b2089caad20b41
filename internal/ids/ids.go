package ids

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/segmentio/ksuid"
)

func New() string {
	return ksuid.New().String()
}

// Namer builds collision-resistant content filenames of the form
// <field>-<unixmillis>-<suffix><ext>.
type Namer struct {
	Now    func() time.Time
	Suffix func() string
}

func NewNamer() Namer {
	return Namer{Now: time.Now, Suffix: New}
}

// Name keeps the extension of originalName. fallbackExt is used when the
// original name has none and may be given with or without a leading dot.
func (n Namer) Name(field, originalName, fallbackExt string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	if !safeExt(ext) {
		ext = ""
	}
	if ext == "" && fallbackExt != "" {
		ext = "." + strings.TrimPrefix(strings.ToLower(fallbackExt), ".")
	}

	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	suffix := New
	if n.Suffix != nil {
		suffix = n.Suffix
	}
	return fmt.Sprintf("%s-%d-%s%s", field, now().UnixMilli(), suffix(), ext)
}

func safeExt(ext string) bool {
	if len(ext) < 2 || len(ext) > 10 {
		return false
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
