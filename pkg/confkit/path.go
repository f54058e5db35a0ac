package confkit

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// RootEnv overrides project root discovery, e.g. in containers where the
// binary runs outside the source tree.
const RootEnv = "PRICESYNC_ROOT"

// ProjectRoot locates the repository root. RootEnv wins; otherwise the
// working directory and then this source file are walked upwards looking for
// go.mod or .git. The working directory is returned when nothing matches.
func ProjectRoot() (string, error) {
	if root := os.Getenv(RootEnv); root != "" {
		return filepath.Clean(root), nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return ".", fmt.Errorf("getwd: %w", err)
	}
	if root, ok := walkUp(wd); ok {
		return root, nil
	}
	if _, file, _, ok := runtime.Caller(0); ok {
		if root, ok := walkUp(filepath.Dir(file)); ok {
			return root, nil
		}
	}
	return wd, nil
}

func walkUp(dir string) (string, bool) {
	for i := 0; i < maxWalkDepth; i++ {
		if isRoot(dir) {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false
}

// MustProjectRoot returns ProjectRoot or panics.
func MustProjectRoot() string {
	root, err := ProjectRoot()
	if err != nil {
		panic(err)
	}
	return root
}

// ProjectPath joins the project root with rel.
func ProjectPath(rel string) (string, error) {
	root, err := ProjectRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, rel), nil
}

// MustProjectPath returns ProjectPath(rel) or panics.
func MustProjectPath(rel string) string {
	p, err := ProjectPath(rel)
	if err != nil {
		panic(err)
	}
	return p
}
