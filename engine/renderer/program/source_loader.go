package program

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
)

//go:embed assets/*.wgsl
var embeddedAssets embed.FS

// SourceLoader supplies the raw WGSL text of the program sources and shared snippets by file name.
type SourceLoader interface {
	// Load returns the contents of a WGSL source file.
	//
	// Parameters:
	//   - name: the file name, e.g. "gbuffer_vs.wgsl"
	//
	// Returns:
	//   - string: the WGSL source
	//   - error: an error if the file cannot be read
	Load(name string) (string, error)
}

// fsLoader reads sources from a file system.
type fsLoader struct {
	fsys fs.FS
	root string
}

var _ SourceLoader = &fsLoader{}

// EmbeddedLoader returns the loader of the WGSL sources compiled into the binary.
//
// Returns:
//   - SourceLoader: the embedded source loader
func EmbeddedLoader() SourceLoader {
	sub, err := fs.Sub(embeddedAssets, "assets")
	if err != nil {
		panic(fmt.Sprintf("program: failed to open embedded assets: %v", err))
	}
	return &fsLoader{fsys: sub, root: "embedded"}
}

// DirLoader returns a loader that reads sources from a directory on every Load, so edited files
// are picked up by Manager.RecompileShaders.
//
// Parameters:
//   - dir: the directory holding the .wgsl files
//
// Returns:
//   - SourceLoader: the directory source loader
func DirLoader(dir string) SourceLoader {
	return &fsLoader{fsys: os.DirFS(dir), root: dir}
}

func (l *fsLoader) Load(name string) (string, error) {
	data, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		return "", fmt.Errorf("program: failed to load %s from %s: %w", name, l.root, err)
	}
	return string(data), nil
}
