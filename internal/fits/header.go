package fits

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// BlockSize is the size of a FITS logical record.
	BlockSize = 2880

	// CardSize is the size of a single header card.
	CardSize = 80

	// DateLayout is the FITS date-time format without fractional seconds.
	DateLayout = "2006-01-02T15:04:05"
)

// ErrMissingKeyword is returned when a required header keyword is absent.
var ErrMissingKeyword = errors.New("fits: missing keyword")

// Card is a single header record. Value is one of string, bool, int64 or
// float64, or nil for commentary cards.
type Card struct {
	Key     string
	Value   any
	Comment string
}

// Header is an ordered list of header cards.
type Header []Card

// Get returns the first card with the given keyword.
func (h Header) Get(key string) (Card, bool) {
	key = strings.ToUpper(key)
	for _, c := range h {
		if c.Key == key {
			return c, true
		}
	}
	return Card{}, false
}

// Has reports whether the keyword is present.
func (h Header) Has(key string) bool {
	_, ok := h.Get(key)
	return ok
}

// Set replaces the value and comment of the keyword, or appends a new card.
func (h *Header) Set(key string, value any, comment string) {
	key = strings.ToUpper(key)
	for i, c := range *h {
		if c.Key == key {
			(*h)[i] = Card{Key: key, Value: normalizeValue(value), Comment: comment}
			return
		}
	}
	*h = append(*h, Card{Key: key, Value: normalizeValue(value), Comment: comment})
}

// String returns the value of a string keyword.
func (h Header) String(key string) (string, error) {
	c, err := h.lookup(key)
	if err != nil {
		return "", err
	}
	s, ok := c.Value.(string)
	if !ok {
		return "", fmt.Errorf("fits: keyword %s is %T, not a string", c.Key, c.Value)
	}
	return s, nil
}

// Float returns the value of a numeric keyword.
func (h Header) Float(key string) (float64, error) {
	c, err := h.lookup(key)
	if err != nil {
		return 0, err
	}
	switch v := c.Value.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case string:
		// Some writers quote numbers.
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("fits: keyword %s: %w", c.Key, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("fits: keyword %s is %T, not a number", c.Key, c.Value)
	}
}

// Int returns the value of an integer keyword.
func (h Header) Int(key string) (int64, error) {
	c, err := h.lookup(key)
	if err != nil {
		return 0, err
	}
	v, ok := c.Value.(int64)
	if !ok {
		return 0, fmt.Errorf("fits: keyword %s is %T, not an integer", c.Key, c.Value)
	}
	return v, nil
}

// Bool returns the value of a logical keyword.
func (h Header) Bool(key string) (bool, error) {
	c, err := h.lookup(key)
	if err != nil {
		return false, err
	}
	v, ok := c.Value.(bool)
	if !ok {
		return false, fmt.Errorf("fits: keyword %s is %T, not a logical", c.Key, c.Value)
	}
	return v, nil
}

// Time returns the value of a date keyword, interpreted as UTC.
func (h Header) Time(key string) (time.Time, error) {
	s, err := h.String(key)
	if err != nil {
		return time.Time{}, err
	}
	for _, layout := range []string{"2006-01-02T15:04:05.999999999", time.DateOnly} {
		if t, err := time.ParseInLocation(layout, strings.TrimSpace(s), time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("fits: keyword %s: invalid date %q", strings.ToUpper(key), s)
}

func (h Header) lookup(key string) (Card, error) {
	c, ok := h.Get(key)
	if !ok {
		return Card{}, fmt.Errorf("%w %s", ErrMissingKeyword, strings.ToUpper(key))
	}
	return c, nil
}

func normalizeValue(value any) any {
	switch v := value.(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float32:
		return float64(v)
	case time.Time:
		return v.UTC().Format(DateLayout)
	default:
		return v
	}
}

// parseCard decodes one 80 byte header record.
func parseCard(b []byte) (Card, error) {
	key := strings.TrimSpace(string(b[:8]))
	c := Card{Key: key}

	if key == "" || key == "COMMENT" || key == "HISTORY" || string(b[8:10]) != "= " {
		// Commentary card: COMMENT, HISTORY, blank or END.
		c.Comment = strings.TrimRight(string(b[8:]), " ")
		return c, nil
	}

	rest := string(b[10:])
	trimmed := strings.TrimLeft(rest, " ")

	if strings.HasPrefix(trimmed, "'") {
		value, tail, err := parseString(trimmed)
		if err != nil {
			return Card{}, fmt.Errorf("fits: keyword %s: %w", key, err)
		}
		c.Value = value
		c.Comment = parseComment(tail)
		return c, nil
	}

	raw, comment, _ := strings.Cut(trimmed, "/")
	c.Comment = strings.TrimSpace(comment)
	raw = strings.TrimSpace(raw)

	switch {
	case raw == "":
		c.Value = nil
	case raw == "T":
		c.Value = true
	case raw == "F":
		c.Value = false
	default:
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			c.Value = i
		} else if f, err := strconv.ParseFloat(strings.ReplaceAll(raw, "D", "E"), 64); err == nil {
			c.Value = f
		} else {
			c.Value = raw
		}
	}
	return c, nil
}

// parseString decodes a quoted string value and returns the text after the
// closing quote. Embedded quotes are doubled.
func parseString(s string) (value, tail string, err error) {
	var sb strings.Builder
	for i := 1; i < len(s); i++ {
		if s[i] != '\'' {
			sb.WriteByte(s[i])
			continue
		}
		if i+1 < len(s) && s[i+1] == '\'' {
			sb.WriteByte('\'')
			i++
			continue
		}
		return strings.TrimRight(sb.String(), " "), s[i+1:], nil
	}
	return "", "", errors.New("unterminated string")
}

func parseComment(tail string) string {
	_, comment, ok := strings.Cut(tail, "/")
	if !ok {
		return ""
	}
	return strings.TrimSpace(comment)
}

// formatCard encodes a card into exactly CardSize bytes.
func formatCard(c Card) ([]byte, error) {
	key := strings.ToUpper(c.Key)
	if len(key) > 8 {
		return nil, fmt.Errorf("fits: keyword %q is longer than 8 characters", key)
	}

	if err := checkASCII(c.Comment); err != nil {
		return nil, fmt.Errorf("fits: keyword %s comment: %w", key, err)
	}

	var line string
	switch {
	case c.Value == nil:
		line = fmt.Sprintf("%-8s%s", key, c.Comment)
	default:
		value, err := formatValue(c.Value)
		if err != nil {
			return nil, fmt.Errorf("fits: keyword %s: %w", key, err)
		}
		line = fmt.Sprintf("%-8s= %s", key, value)
		if c.Comment != "" {
			line += " / " + c.Comment
		}
	}

	if len(line) > CardSize {
		line = line[:CardSize]
	}
	return []byte(fmt.Sprintf("%-80s", line)), nil
}

// checkASCII rejects text that cannot appear in a header card.
func checkASCII(s string) error {
	for i := 0; i < len(s); i++ {
		if s[i] < ' ' || s[i] > '~' {
			return fmt.Errorf("text %q has a non-printable or non-ASCII byte at %d", s, i)
		}
	}
	return nil
}

func formatValue(value any) (string, error) {
	switch v := normalizeValue(value).(type) {
	case string:
		if err := checkASCII(v); err != nil {
			return "", err
		}
		// At most 68 characters fit between the quotes once quotes are doubled.
		n, width := 0, 0
		for n < len(v) {
			w := 1
			if v[n] == '\'' {
				w = 2
			}
			if width+w > 68 {
				break
			}
			width += w
			n++
		}
		quoted := strings.ReplaceAll(v[:n], "'", "''")
		// Strings are at least 8 characters between the quotes.
		return fmt.Sprintf("'%-8s'", quoted), nil
	case bool:
		if v {
			return fmt.Sprintf("%20s", "T"), nil
		}
		return fmt.Sprintf("%20s", "F"), nil
	case int64:
		return fmt.Sprintf("%20d", v), nil
	case float64:
		s := strings.ToUpper(strconv.FormatFloat(v, 'g', -1, 64))
		if strings.ContainsAny(s, "NI") {
			return "", fmt.Errorf("value %v cannot be represented", v)
		}
		if !strings.ContainsAny(s, ".E") {
			s += ".0"
		}
		return fmt.Sprintf("%20s", s), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", value)
	}
}
