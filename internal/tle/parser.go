package tle

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Parse reads NORAD TLE text from r. Both the 3-line form (name line
// followed by lines 1 and 2) and the bare 2-line form are accepted.
// Malformed entries are skipped with a warning log.
func Parse(r io.Reader, logger *slog.Logger) ([]TLEEntry, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}

	var entries []TLEEntry
	name := ""
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if !strings.HasPrefix(line, "1 ") {
			if strings.HasPrefix(line, "2 ") {
				logger.Warn("skipping orphan TLE line 2", "line_index", i)
				name = ""
				continue
			}
			name = strings.TrimSpace(strings.TrimPrefix(line, "0 "))
			continue
		}
		if i+1 >= len(lines) || !strings.HasPrefix(lines[i+1], "2 ") {
			logger.Warn("skipping TLE line 1 without line 2", "line_index", i, "name", name)
			name = ""
			continue
		}

		entry, err := parseEntry(name, line, lines[i+1])
		i++
		name = ""
		if err != nil {
			logger.Warn("skipping malformed TLE entry", "line_index", i-1, "error", err)
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func parseEntry(name, line1, line2 string) (TLEEntry, error) {
	if len(line1) < 32 {
		return TLEEntry{}, fmt.Errorf("line1 too short (%d chars)", len(line1))
	}

	// NORAD catalog number, columns 3-7.
	noradStr := strings.TrimSpace(line1[2:7])
	noradID, err := strconv.Atoi(noradStr)
	if err != nil {
		return TLEEntry{}, fmt.Errorf("invalid NORAD ID %q: %w", noradStr, err)
	}

	// Epoch, columns 19-32.
	epoch, err := parseEpoch(strings.TrimSpace(line1[18:32]))
	if err != nil {
		return TLEEntry{}, err
	}

	if name == "" {
		name = strconv.Itoa(noradID)
	}
	return TLEEntry{
		NORADID: noradID,
		Name:    name,
		Epoch:   epoch,
		Line1:   line1,
		Line2:   line2,
	}, nil
}

// parseEpoch converts a TLE epoch in YYDDD.DDDDDDDD format to UTC.
// Years 57-99 map to the 1900s, 00-56 to the 2000s.
func parseEpoch(s string) (time.Time, error) {
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("epoch string too short: %q", s)
	}

	year, err := strconv.Atoi(s[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch year %q: %w", s[:2], err)
	}
	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}

	day, err := strconv.ParseFloat(s[2:], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch day %q: %w", s[2:], err)
	}

	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return start.Add(time.Duration((day - 1) * float64(24*time.Hour))), nil
}

// Select picks the entry with the given NORAD id, falling back to a
// case-insensitive name match. ok is false when neither matches.
func Select(entries []TLEEntry, noradID int, name string) (TLEEntry, bool) {
	if noradID > 0 {
		for _, e := range entries {
			if e.NORADID == noradID {
				return e, true
			}
		}
	}
	if name != "" {
		for _, e := range entries {
			if strings.EqualFold(e.Name, name) {
				return e, true
			}
		}
	}
	return TLEEntry{}, false
}
