package loader

import (
	"os"
	"strings"
)

const utf8BOM = "\ufeff"

// loadText reads a text file, silently dropping bytes that are not valid UTF-8.
func loadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return cleanText(data), nil
}

func cleanText(data []byte) string {
	s := strings.ToValidUTF8(string(data), "")
	s = strings.TrimPrefix(s, utf8BOM)
	return strings.ReplaceAll(s, "\x00", "")
}
