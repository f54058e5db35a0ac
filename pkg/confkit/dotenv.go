package confkit

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/zeromicro/go-zero/core/logx"
)

var dotenvOnce sync.Once

// LoadDotenvOnce loads .env files once per process.
//
//   - NO_DOTENV=1 disables loading.
//   - ENV_FILE is a comma separated list of files loaded in order.
//   - Otherwise .env is loaded from the working directory and each parent up
//     to the project root, nearest first.
//
// Variables already set in the environment win unless DOTENV_OVERLOAD=1.
func LoadDotenvOnce() {
	dotenvOnce.Do(loadDotenv)
}

func loadDotenv() {
	if os.Getenv("NO_DOTENV") == "1" {
		return
	}
	overload := os.Getenv("DOTENV_OVERLOAD") == "1"
	load := func(path string) {
		var err error
		if overload {
			err = godotenv.Overload(path)
		} else {
			err = godotenv.Load(path)
		}
		if err != nil && !os.IsNotExist(err) {
			logx.Errorf("confkit: load dotenv path=%s err=%v", path, err)
		}
	}

	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		for _, p := range strings.Split(envFile, ",") {
			if p = strings.TrimSpace(p); p != "" {
				load(p)
			}
		}
		return
	}

	for _, dir := range searchDirs() {
		if p := filepath.Join(dir, ".env"); fileExists(p) {
			load(p)
		}
	}
}

// searchDirs lists the working directory and its parents up to the first one
// holding go.mod or .git.
func searchDirs() []string {
	wd, err := os.Getwd()
	if err != nil {
		return []string{"."}
	}
	var dirs []string
	for dir, i := wd, 0; i < maxWalkDepth; i++ {
		dirs = append(dirs, dir)
		if isRoot(dir) {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return dirs
}
