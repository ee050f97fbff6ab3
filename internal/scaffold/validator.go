package scaffold

import (
	"fmt"
	"strings"
)

// CheckExisting returns an error naming every file Initialize would
// overwrite.
func (i *Initializer) CheckExisting(files []FileInfo) error {
	var existing []string
	for _, file := range files {
		if _, err := i.Fs.Stat(i.path(file.Path)); err == nil {
			existing = append(existing, file.Path)
		}
	}
	if len(existing) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("project already initialized\n\nFound existing")
	if len(existing) == 1 {
		fmt.Fprintf(&b, ": %s\n", existing[0])
	} else {
		b.WriteString(" files:\n")
		for _, path := range existing {
			fmt.Fprintf(&b, "  - %s\n", path)
		}
	}
	b.WriteString("\nUse 'warren init --force' to reinitialize (this will overwrite existing files)")
	return fmt.Errorf("%s", b.String())
}
