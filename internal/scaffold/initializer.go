// Package scaffold creates the files a new warren project starts from.
package scaffold

import (
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dyluth/warren/internal/config"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

//go:embed templates/*
var templatesFS embed.FS

// FileInfo represents a file to be created during initialization
type FileInfo struct {
	Path        string
	Content     []byte
	Permissions os.FileMode
}

// Initializer writes the project skeleton below Root on Fs. Notices about
// replaced files go to Out.
type Initializer struct {
	Fs   afero.Fs
	Root string
	Out  io.Writer
}

// NewInitializer returns an initializer for dir on the host filesystem.
func NewInitializer(dir string, out io.Writer) *Initializer {
	return &Initializer{Fs: afero.NewOsFs(), Root: dir, Out: out}
}

// Initialize creates warren.yml, the starter code template and its Cargo
// manifest. Existing files are an error unless force is set, in which case
// they are replaced.
func (i *Initializer) Initialize(force bool) ([]FileInfo, error) {
	files, err := getTemplateFiles()
	if err != nil {
		return nil, err
	}

	if force {
		if err := i.handleForce(files); err != nil {
			return nil, err
		}
	} else if err := i.CheckExisting(files); err != nil {
		return nil, err
	}

	if err := i.writeFiles(files); err != nil {
		return nil, err
	}
	if err := i.validateCreatedFiles(); err != nil {
		return nil, err
	}
	return files, nil
}

func (i *Initializer) path(rel string) string {
	return filepath.Join(i.Root, rel)
}

// handleForce removes the files Initialize is about to write.
func (i *Initializer) handleForce(files []FileInfo) error {
	for _, file := range files {
		if _, err := i.Fs.Stat(i.path(file.Path)); err != nil {
			continue
		}
		if i.Out != nil {
			fmt.Fprintf(i.Out, "⚠️  Removing existing %s...\n", file.Path)
		}
		if err := i.Fs.Remove(i.path(file.Path)); err != nil {
			return fmt.Errorf("failed to remove %s: %w", file.Path, err)
		}
	}
	return nil
}

// getTemplateFiles places the embedded templates at the default paths.
func getTemplateFiles() ([]FileInfo, error) {
	defaults := config.Default()
	layout := []struct {
		template string
		path     string
	}{
		{"templates/warren.yml.tmpl", config.DefaultPath},
		{"templates/Cargo.toml.tmpl", filepath.Join(defaults.Build.Dir, "Cargo.toml")},
		{"templates/code_template.rs.tmpl", defaults.Paths.Template},
	}

	files := make([]FileInfo, 0, len(layout))
	for _, l := range layout {
		content, err := templatesFS.ReadFile(l.template)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s template: %w", filepath.Base(l.path), err)
		}
		files = append(files, FileInfo{Path: l.path, Content: content, Permissions: 0o644})
	}
	return files, nil
}

// writeFiles writes all template files, creating parent directories
func (i *Initializer) writeFiles(files []FileInfo) error {
	for _, file := range files {
		full := i.path(file.Path)
		if err := i.Fs.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", file.Path, err)
		}
		if err := afero.WriteFile(i.Fs, full, file.Content, file.Permissions); err != nil {
			return fmt.Errorf("failed to write %s: %w", file.Path, err)
		}
	}

	schemaDir := filepath.Dir(config.Default().Paths.EndpointSchema)
	if err := i.Fs.MkdirAll(i.path(schemaDir), 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", schemaDir, err)
	}
	return nil
}

// validateCreatedFiles checks the written warren.yml is a valid configuration
func (i *Initializer) validateCreatedFiles() error {
	content, err := afero.ReadFile(i.Fs, i.path(config.DefaultPath))
	if err != nil {
		return fmt.Errorf("failed to read created %s: %w", config.DefaultPath, err)
	}

	var cfg config.Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return fmt.Errorf("created %s is not valid YAML: %w", config.DefaultPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("created %s is invalid: %w", config.DefaultPath, err)
	}
	return nil
}

// PrintSuccess prints the success message with created files
func PrintSuccess(w io.Writer, files []FileInfo) {
	fmt.Fprintln(w, "\n✅ Successfully initialized warren project!")
	fmt.Fprintln(w, "\nCreated:")
	for _, file := range files {
		fmt.Fprintf(w, "  ✓ %s\n", file.Path)
	}
	fmt.Fprintln(w, "\nNext steps:")
	fmt.Fprintf(w, "  1. Export %s and %s\n", config.APIKeyEnv, config.OrgIDEnv)
	fmt.Fprintf(w, "  2. Adjust %s (build driver, ports, journal)\n", config.DefaultPath)
	fmt.Fprintln(w, "  3. Run 'warren' and describe the website you want")
}
