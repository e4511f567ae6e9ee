// Package dotenv loads optional KEY=VALUE files into the process
// environment before config is read. Variables already present in the
// environment always win, so a deployed gateway is never reconfigured by a
// stray .env left in the working directory.
package dotenv

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// LoadFile reads a dotenv-style file and sets any keys that are not
// already in the environment. A missing file is not an error.
func LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open env file %q: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		key, val, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, val); err != nil {
			return fmt.Errorf("set env %q from %q: %w", key, path, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan env file %q: %w", path, err)
	}
	return nil
}

// parseLine extracts one KEY=VALUE assignment. Blank lines, comments and
// lines without a key are skipped. An optional "export " prefix and single
// or double quotes around the value are stripped.
func parseLine(raw string) (key, val string, ok bool) {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimPrefix(line, "export ")

	key, val, found := strings.Cut(line, "=")
	if !found {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}
	return key, unquote(strings.TrimSpace(val)), true
}

func unquote(val string) string {
	if len(val) < 2 {
		return val
	}
	for _, q := range []string{`"`, "'"} {
		if strings.HasPrefix(val, q) && strings.HasSuffix(val, q) {
			return val[1 : len(val)-1]
		}
	}
	return val
}
