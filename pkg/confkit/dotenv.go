package confkit

import (
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/joho/godotenv"
)

var (
	dotenvOnce  sync.Once
	dotenvFiles []string
)

// LoadDotenvOnce loads .env files the first time it is called:
//   - NO_DOTENV=1 disables loading;
//   - ENV_FILE names a single file to load;
//   - otherwise every .env from the working directory up to the project root.
//
// Variables already set win unless DOTENV_OVERLOAD=1.
func LoadDotenvOnce() {
	dotenvOnce.Do(func() {
		wd, err := os.Getwd()
		if err != nil {
			wd = "."
		}
		dotenvFiles = loadDotenv(wd)
	})
}

// DotenvFiles lists the files LoadDotenvOnce applied.
func DotenvFiles() []string {
	return append([]string(nil), dotenvFiles...)
}

func loadDotenv(start string) []string {
	if os.Getenv("NO_DOTENV") == "1" {
		return nil
	}
	overload := os.Getenv("DOTENV_OVERLOAD") == "1"
	apply := godotenv.Load
	if overload {
		apply = godotenv.Overload
	}

	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if apply(envFile) == nil {
			return []string{envFile}
		}
		return nil
	}

	var candidates []string
	root := FindRoot(start)
	dir := start
	for {
		if candidate := filepath.Join(dir, ".env"); fileExists(candidate) {
			candidates = append(candidates, candidate)
		}
		if root == "" || dir == root {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	// the file nearest to start wins in both modes
	if overload {
		slices.Reverse(candidates)
	}
	var loaded []string
	for _, c := range candidates {
		if apply(c) == nil {
			loaded = append(loaded, c)
		}
	}
	return loaded
}
