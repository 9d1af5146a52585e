package tablemsg

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
)

// ErrNoTableInfo is returned when a message contains no recognizable
// amount/game-type line.
var ErrNoTableInfo = errors.New("no table info line in message")

// OpenTable is the structured bet data recovered from an open-table
// broadcast. Parsing is a reply-routing hint only; the table record in the
// store stays the source of truth for settlement amounts.
type OpenTable struct {
	Amount   int64
	GameType string
	Options  string
}

// ParseOpen recovers structured bet data from an open-table message. The
// info line is located by the historical heuristic: the first line that
// contains " | " and at least one digit. Everything from the first option
// marker onwards is the raw options tail.
func ParseOpen(text string) (*OpenTable, error) {
	var infoLine string
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, " | ") && strings.ContainsFunc(line, unicode.IsDigit) {
			infoLine = line
			break
		}
	}
	if infoLine == "" {
		return nil, ErrNoTableInfo
	}

	parts := strings.Split(infoLine, " | ")
	amount, err := parseAmount(parts[0])
	if err != nil {
		return nil, err
	}

	parsed := &OpenTable{
		Amount:   amount,
		GameType: strings.TrimSpace(strings.Join(parts[1:], " | ")),
	}
	if idx := strings.Index(text, OptionMarker); idx != -1 {
		parsed.Options = strings.TrimSpace(text[idx:])
	}
	return parsed, nil
}

// parseAmount accepts both the bare open-table form ("600") and the
// matched form ("Rs.600.00").
func parseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "Rs.")
	if idx := strings.Index(s, "."); idx != -1 {
		s = s[:idx]
	}
	amount, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.New("unparseable amount in table info line")
	}
	return amount, nil
}

// SplitOptions breaks a raw options tail back into individual flags.
func SplitOptions(raw string) []string {
	if raw == "" {
		return nil
	}
	var opts []string
	for _, part := range strings.Split(raw, OptionMarker) {
		part = strings.TrimSpace(part)
		if part != "" {
			opts = append(opts, part)
		}
	}
	return opts
}
