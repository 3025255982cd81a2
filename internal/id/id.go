package id

import (
	"fmt"
	"strconv"
	"strings"
)

// Document prefixes.
const (
	PrefixJournal = "JV"
	PrefixInvoice = "INV"
	PrefixReceipt = "RCT"
)

// FormatEntryNumber returns a journal number like "JV-2025-0001".
func FormatEntryNumber(yearID string, seq int) string {
	return fmt.Sprintf("%s-%s-%04d", PrefixJournal, yearID, seq)
}

// FormatLineID returns a line ID like "JV-2025-0001a" (line 0='a', 25='z', 26='aa').
func FormatLineID(entryNumber string, line int) string {
	return entryNumber + lineSuffix(line)
}

func lineSuffix(n int) string {
	var b []byte
	for {
		b = append([]byte{byte('a' + n%26)}, b...)
		n = n/26 - 1
		if n < 0 {
			break
		}
	}
	return string(b)
}

// ParseEntryNumber parses "JV-2025-0001" (with or without line suffix) into
// its year ID and sequence.
func ParseEntryNumber(s string) (yearID string, seq int, err error) {
	base := EntryGroup(s)

	if !strings.HasPrefix(base, PrefixJournal+"-") {
		return "", 0, fmt.Errorf("invalid entry number format: %q", s)
	}
	rest := strings.TrimPrefix(base, PrefixJournal+"-")
	i := strings.LastIndex(rest, "-")
	if i <= 0 {
		return "", 0, fmt.Errorf("invalid entry number format: %q", s)
	}

	seq, err = strconv.Atoi(rest[i+1:])
	if err != nil {
		return "", 0, fmt.Errorf("invalid sequence in entry number %q: %w", s, err)
	}
	return rest[:i], seq, nil
}

// EntryGroup strips the line suffix from a line ID.
// "JV-2025-0001a" -> "JV-2025-0001"
func EntryGroup(lineID string) string {
	if len(lineID) == 0 {
		return ""
	}
	i := len(lineID)
	for i > 0 && lineID[i-1] >= 'a' && lineID[i-1] <= 'z' {
		i--
	}
	return lineID[:i]
}

// FormatSerial returns a document serial like "INV-000042".
func FormatSerial(prefix string, n int) string {
	return fmt.Sprintf("%s-%06d", prefix, n)
}

// ParseSerial parses "INV-000042" into 42, checking the prefix.
func ParseSerial(prefix, s string) (int, error) {
	if !strings.HasPrefix(s, prefix+"-") {
		return 0, fmt.Errorf("invalid %s serial: %q", prefix, s)
	}
	n, err := strconv.Atoi(strings.TrimPrefix(s, prefix+"-"))
	if err != nil {
		return 0, fmt.Errorf("invalid %s serial %q: %w", prefix, s, err)
	}
	return n, nil
}
