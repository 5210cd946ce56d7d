// Package selection parses column selections such as "1,3-5" or
// `name,"odd-name"[1]` and resolves them against a header row.
//
// Grammar, comma separated:
//   - 1-based index: 3
//   - name, optionally with a 0-based occurrence for duplicated names: id, id[1]
//   - quoted name, for names with commas, dashes or digits only: "a-b"
//   - inclusive range of the above; either end may be left open: 2-4, id-, -3
//
// Ranges whose start comes after their end run backwards.
package selection

import (
	"strconv"
	"strings"

	"github.com/csvquery/csvjoin/internal/common"
)

// Selector is a parsed, unresolved column selection
type Selector struct {
	raw   string
	items []item
}

type item struct {
	start   endpoint
	end     endpoint
	isRange bool
}

type endpointKind int

const (
	kindOpen endpointKind = iota
	kindIndex
	kindName
)

type endpoint struct {
	kind  endpointKind
	index int // 1-based
	name  string
	nth   int
}

// Parse parses a selection string. It does not look at any header.
func Parse(expr string) (Selector, error) {
	p := &parser{src: expr}
	sel := Selector{raw: expr}
	if strings.TrimSpace(expr) == "" {
		return sel, common.Usagef("Empty column selection.")
	}

	for {
		it, err := p.item()
		if err != nil {
			return sel, err
		}
		sel.items = append(sel.items, it)

		if p.done() {
			return sel, nil
		}
		if p.peek() != ',' {
			return sel, p.errorf("expected ',' at position %d", p.pos)
		}
		p.pos++
	}
}

// MustParse is like Parse but panics on error. For tests and constants.
func MustParse(expr string) Selector {
	sel, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return sel
}

// String returns the selection as given to Parse
func (s Selector) String() string {
	return s.raw
}

// Resolve turns the selection into 0-based positions of headers.
// Names are only allowed when the headers are real headers.
func (s Selector) Resolve(headers []string, hasHeaders bool) ([]int, error) {
	var out []int
	for _, it := range s.items {
		if !it.isRange {
			pos, err := s.position(it.start, headers, hasHeaders, 0)
			if err != nil {
				return nil, err
			}
			out = append(out, pos)
			continue
		}

		start, err := s.position(it.start, headers, hasHeaders, 0)
		if err != nil {
			return nil, err
		}
		end, err := s.position(it.end, headers, hasHeaders, len(headers)-1)
		if err != nil {
			return nil, err
		}
		if start <= end {
			for i := start; i <= end; i++ {
				out = append(out, i)
			}
		} else {
			for i := start; i >= end; i-- {
				out = append(out, i)
			}
		}
	}
	return out, nil
}

// position resolves one endpoint; open endpoints become open.
func (s Selector) position(ep endpoint, headers []string, hasHeaders bool, open int) (int, error) {
	switch ep.kind {
	case kindOpen:
		if len(headers) == 0 {
			return 0, common.Usagef("Cannot select a range of columns from data with no columns.")
		}
		return open, nil
	case kindIndex:
		if ep.index < 1 || ep.index > len(headers) {
			return 0, common.Usagef(
				"Selector index %d is out of bounds. Index must be >= 1 and <= %d.",
				ep.index, len(headers))
		}
		return ep.index - 1, nil
	default:
		if !hasHeaders {
			return 0, common.Usagef(
				"Cannot use names ('%s') in selection with --no-headers set.", ep.name)
		}
		seen := 0
		for i, h := range headers {
			if h != ep.name {
				continue
			}
			if seen == ep.nth {
				return i, nil
			}
			seen++
		}
		if ep.nth > 0 {
			return 0, common.Usagef(
				"Selector name '%s[%d]' does not exist: the name only appears %d time(s) in the header.",
				ep.name, ep.nth, seen)
		}
		return 0, common.Usagef(
			"Selector name '%s' does not exist as a named header in the given CSV data.", ep.name)
	}
}

type parser struct {
	src string
	pos int
}

func (p *parser) done() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte { return p.src[p.pos] }

func (p *parser) errorf(format string, args ...any) error {
	return common.Usagef("Invalid column selection '%s': "+format, append([]any{p.src}, args...)...)
}

func (p *parser) item() (item, error) {
	start, err := p.endpoint()
	if err != nil {
		return item{}, err
	}
	if p.done() || p.peek() != '-' {
		if start.kind == kindOpen {
			return item{}, p.errorf("empty selector at position %d", p.pos)
		}
		return item{start: start}, nil
	}

	p.pos++ // '-'
	end, err := p.endpoint()
	if err != nil {
		return item{}, err
	}
	return item{start: start, end: end, isRange: true}, nil
}

func (p *parser) endpoint() (endpoint, error) {
	var (
		name   string
		quoted bool
	)
	if !p.done() && p.peek() == '"' {
		s, err := p.quoted()
		if err != nil {
			return endpoint{}, err
		}
		name, quoted = s, true
	} else {
		begin := p.pos
		for !p.done() {
			c := p.peek()
			if c == ',' || c == '-' || c == '[' {
				break
			}
			p.pos++
		}
		name = p.src[begin:p.pos]
	}

	nth := 0
	hasNth := false
	if !p.done() && p.peek() == '[' {
		end := strings.IndexByte(p.src[p.pos:], ']')
		if end < 0 {
			return endpoint{}, p.errorf("unclosed '[' at position %d", p.pos)
		}
		n, err := strconv.Atoi(p.src[p.pos+1 : p.pos+end])
		if err != nil || n < 0 {
			return endpoint{}, p.errorf("bad occurrence '%s'", p.src[p.pos:p.pos+end+1])
		}
		p.pos += end + 1
		nth, hasNth = n, true
	}

	if quoted {
		return endpoint{kind: kindName, name: name, nth: nth}, nil
	}
	if name == "" {
		if hasNth {
			return endpoint{}, p.errorf("occurrence without a name")
		}
		return endpoint{kind: kindOpen}, nil
	}
	if idx, err := strconv.Atoi(name); err == nil && !hasNth {
		return endpoint{kind: kindIndex, index: idx}, nil
	}
	return endpoint{kind: kindName, name: name, nth: nth}, nil
}

// quoted reads a double quoted name; "" inside stands for one quote.
func (p *parser) quoted() (string, error) {
	open := p.pos
	p.pos++
	var sb strings.Builder
	for !p.done() {
		c := p.peek()
		p.pos++
		if c != '"' {
			sb.WriteByte(c)
			continue
		}
		if !p.done() && p.peek() == '"' {
			sb.WriteByte('"')
			p.pos++
			continue
		}
		return sb.String(), nil
	}
	return "", p.errorf("unclosed quote at position %d", open)
}

// Project copies the fields of row at positions into dst and returns it.
// Positions past the end of row yield empty fields.
func Project(dst []string, row []string, positions []int) []string {
	dst = dst[:0]
	for _, i := range positions {
		if i < len(row) {
			dst = append(dst, row[i])
		} else {
			dst = append(dst, "")
		}
	}
	return dst
}
