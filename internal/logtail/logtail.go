package logtail

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
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
	defer func() { _ = file.Close() }()

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

// Entry is one parsed proxy log record.
type Entry struct {
	Time    time.Time
	Level   string
	Message string
	Fields  []Field
	Raw     string
}

// Field is a key/value attribute, kept in log order.
type Field struct {
	Key   string
	Value string
}

// Get returns the value of the named field.
func (e Entry) Get(key string) (string, bool) {
	for _, f := range e.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Parse decodes a line written by the proxy logger, in either the JSON or the
// key=value text format. Lines in neither format come back with only Raw and
// Message set.
func Parse(line string) Entry {
	trimmed := strings.TrimSpace(line)
	entry := Entry{Raw: line}
	if trimmed == "" {
		return entry
	}
	if strings.HasPrefix(trimmed, "{") {
		if parsed, ok := parseJSON(trimmed); ok {
			parsed.Raw = line
			return parsed
		}
	}
	if parsed, ok := parseText(trimmed); ok {
		parsed.Raw = line
		return parsed
	}
	entry.Message = trimmed
	return entry
}

// ParseLines parses every line, skipping blank ones.
func ParseLines(lines []string) []Entry {
	out := make([]Entry, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, Parse(line))
	}
	return out
}

func parseJSON(line string) (Entry, bool) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Entry{}, false
	}
	var entry Entry
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	// JSON objects carry no order; sort so rendering is stable.
	sort.Strings(keys)
	for _, key := range keys {
		value := raw[key]
		switch key {
		case "time":
			entry.Time = parseTime(fmt.Sprint(value))
		case "level":
			entry.Level = strings.ToUpper(fmt.Sprint(value))
		case "msg":
			entry.Message = fmt.Sprint(value)
		default:
			entry.Fields = append(entry.Fields, Field{Key: key, Value: jsonValue(value)})
		}
	}
	if entry.Level == "" && entry.Message == "" {
		return Entry{}, false
	}
	return entry, true
}

func jsonValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	case float64, bool:
		return fmt.Sprint(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

func parseText(line string) (Entry, bool) {
	pairs, ok := splitPairs(line)
	if !ok {
		return Entry{}, false
	}
	var entry Entry
	for _, f := range pairs {
		switch f.Key {
		case "time":
			entry.Time = parseTime(f.Value)
		case "level":
			entry.Level = strings.ToUpper(f.Value)
		case "msg":
			entry.Message = f.Value
		default:
			entry.Fields = append(entry.Fields, f)
		}
	}
	if entry.Level == "" && entry.Message == "" {
		return Entry{}, false
	}
	return entry, true
}

// splitPairs tokenizes key=value and key="quoted value" pairs.
func splitPairs(line string) ([]Field, bool) {
	var fields []Field
	i := 0
	for i < len(line) {
		for i < len(line) && line[i] == ' ' {
			i++
		}
		if i >= len(line) {
			break
		}
		eq := strings.IndexByte(line[i:], '=')
		if eq <= 0 {
			return nil, false
		}
		key := line[i : i+eq]
		if strings.ContainsAny(key, " \"") {
			return nil, false
		}
		i += eq + 1

		var value string
		if i < len(line) && line[i] == '"' {
			end := i + 1
			for end < len(line) && line[end] != '"' {
				if line[end] == '\\' {
					end++
				}
				end++
			}
			if end >= len(line) {
				return nil, false
			}
			unquoted, err := strconv.Unquote(line[i : end+1])
			if err != nil {
				return nil, false
			}
			value = unquoted
			i = end + 1
		} else {
			end := strings.IndexByte(line[i:], ' ')
			if end < 0 {
				end = len(line) - i
			}
			value = line[i : i+end]
			i += end
		}
		fields = append(fields, Field{Key: key, Value: value})
	}
	return fields, len(fields) > 0
}

func parseTime(value string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
