package offline

import (
	"regexp"
	"strings"

	"github.com/templui/campus/internal/model"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// Key is the local filename for f: its id, an underscore, then the display
// name with every character outside [a-zA-Z0-9.-] replaced by "_". The id
// prefix keeps files with the same name apart.
func Key(f model.File) string {
	return f.ID + "_" + unsafeChars.ReplaceAllString(f.Name, "_")
}

// belongsTo reports whether a local key was derived from the file with the given id.
func belongsTo(key, id string) bool {
	return id != "" && strings.HasPrefix(key, id+"_")
}
