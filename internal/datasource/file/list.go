package file

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// ReadList returns the non-empty lines of r that do not start with '#',
// trimmed and in order. Flows use it for lists of repositories or URLs.
func ReadList(r io.Reader) ([]string, error) {
	var out []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadListFile is ReadList over the file at path.
func ReadListFile(path string) ([]string, error) {
	f, err := os.Open(strings.TrimPrefix(path, "file://"))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadList(f)
}
