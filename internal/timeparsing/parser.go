// Package timeparsing resolves the time expressions accepted by
// --since flags. Layers are tried in order: compact offsets (-2d),
// natural language (yesterday, 2 days ago), date-only, RFC3339.
package timeparsing

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// compactRe matches compact offset syntax: [+-]?(\d+)([hdwmy]).
var compactRe = regexp.MustCompile(`^([+-]?)(\d+)([hdwmy])$`)

var nlp = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// ParseCompact parses compact offset syntax relative to now. "-2d" is
// two days ago; a bare "6h" counts forward.
//
// Units: h hours, d days, w weeks, m months, y years.
func ParseCompact(s string, now time.Time) (time.Time, error) {
	m := compactRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("not a compact offset: %q", s)
	}

	amount, err := strconv.Atoi(m[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid offset amount: %q", m[2])
	}
	if m[1] == "-" {
		amount = -amount
	}

	switch m[3] {
	case "h":
		return now.Add(time.Duration(amount) * time.Hour), nil
	case "d":
		return now.AddDate(0, 0, amount), nil
	case "w":
		return now.AddDate(0, 0, amount*7), nil
	case "m":
		return now.AddDate(0, amount, 0), nil
	default: // y, per the regex
		return now.AddDate(amount, 0, 0), nil
	}
}

// ParseNatural parses an English time expression with the when rule
// sets. Returns an error when no rule matches.
func ParseNatural(s string, now time.Time) (time.Time, error) {
	r, err := nlp.Parse(s, now)
	if err != nil {
		return time.Time{}, err
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("no time expression in %q", s)
	}
	return r.Time, nil
}

// Parse resolves s against now through every layer.
func Parse(s string, now time.Time) (time.Time, error) {
	if compactRe.MatchString(s) {
		return ParseCompact(s, now)
	}
	if ts, err := ParseNatural(s, now); err == nil {
		return ts, nil
	}
	if ts, err := time.ParseInLocation("2006-01-02", s, now.Location()); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("cannot parse time expression %q (try \"yesterday\", \"-2d\", or RFC3339)", s)
}
