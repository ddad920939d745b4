package app

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// loadDotenv sets KEY=value pairs from path. Variables that are already set
// to a non-empty value win over the file.
func loadDotenv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for lineNo := 1; sc.Scan(); lineNo++ {
		key, val, skip, err := parseDotenvLine(sc.Text())
		if err != nil {
			return fmt.Errorf(".env line %d: %w", lineNo, err)
		}
		if skip {
			continue
		}
		if cur, ok := os.LookupEnv(key); ok && cur != "" {
			continue
		}
		if err := os.Setenv(key, val); err != nil {
			return fmt.Errorf(".env line %d: %w", lineNo, err)
		}
	}
	return sc.Err()
}

func parseDotenvLine(line string) (key, val string, skip bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", true, nil
	}
	line = strings.TrimSpace(strings.TrimPrefix(line, "export "))

	key, val, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", false, fmt.Errorf("missing '='")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false, fmt.Errorf("empty key")
	}

	val = strings.TrimSpace(val)
	if len(val) < 2 {
		return key, val, false, nil
	}
	switch {
	case val[0] == '"' && val[len(val)-1] == '"':
		u, err := strconv.Unquote(val)
		if err != nil {
			return "", "", false, err
		}
		val = u
	case val[0] == '\'' && val[len(val)-1] == '\'':
		val = val[1 : len(val)-1]
	}
	return key, val, false, nil
}
