package abc

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadNames reads one name per line from the provided file path, keeping
// only names accepted by ValidName.
func LoadNames(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only name list.
			_ = cerr
		}
	}()

	var names []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.Join(strings.Fields(scanner.Text()), " ")
		if !ValidName(line) {
			continue
		}
		names = append(names, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("name list is empty")
	}
	return names, nil
}

// ValidName reports whether a name is usable as a value.
func ValidName(name string) bool {
	n := len([]rune(name))
	if n < 2 || n > 120 {
		return false
	}
	if strings.ContainsRune(name, ',') {
		return false
	}
	digits := true
	for _, r := range name {
		if r == ' ' {
			continue
		}
		if r < '0' || r > '9' {
			digits = false
			break
		}
	}
	return !digits
}
