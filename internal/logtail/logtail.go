package logtail

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Read returns at most maxLines from the end of the file at path. A
// non-positive maxLines returns every line. A missing file yields no lines.
func Read(path string, maxLines int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if maxLines <= 0 {
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read log: %w", err)
		}
		return lines, nil
	}

	ring := make([]string, maxLines)
	count := 0
	idx := 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// Level levels, as reported by Level.
const (
	LevelDebug   = "debug"
	LevelInfo    = "info"
	LevelWarn    = "warn"
	LevelError   = "error"
	LevelUnknown = ""
)

// Level guesses the severity of a line written by the bot's logger in any
// of its formats: pretty (INFO/WARN/ERRO/DEBU), text (level=INFO) or JSON
// ("level":"INFO").
func Level(line string) string {
	if v, ok := fieldValue(line, "level="); ok {
		return normalize(v)
	}
	if v, ok := fieldValue(line, `"level":"`); ok {
		return normalize(v)
	}
	for _, tok := range strings.Fields(line) {
		if lvl := normalize(tok); lvl != LevelUnknown {
			return lvl
		}
	}
	return LevelUnknown
}

func fieldValue(line, key string) (string, bool) {
	i := strings.Index(line, key)
	if i < 0 {
		return "", false
	}
	rest := line[i+len(key):]
	end := strings.IndexAny(rest, " \t\",")
	if end >= 0 {
		rest = rest[:end]
	}
	return rest, true
}

func normalize(tok string) string {
	switch strings.ToUpper(strings.Trim(tok, "[]:")) {
	case "DEBUG", "DEBU":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR", "ERRO", "FATA", "FATAL":
		return LevelError
	default:
		return LevelUnknown
	}
}
