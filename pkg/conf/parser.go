package conf

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// errors
var (
	ErrUnbalancedQuotes = errors.New("unbalanced quotes in arguments")
	ErrMissingArguments = errors.New("no arguments found")
)

type parseState int

const (
	unquoted parseState = iota
	doubleQuoted
	singleQuoted
)

// Parse reads valkey.conf content. Blank lines and lines starting with '#'
// are skipped.
func Parse(r io.Reader) (*Conf, error) {
	var (
		ds     []Directive
		lineNo int
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		d, err := parseDirective(line)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNo)
		}
		ds = append(ds, d)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	return New(ds...)
}

// ParseFile parses the file at path.
func ParseFile(path string) (*Conf, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open conf file %s", path)
	}
	defer f.Close()
	c, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parse conf file %s", path)
	}
	return c, nil
}

func parseDirective(line string) (Directive, error) {
	idx := strings.IndexAny(line, " \t")
	if idx < 0 {
		return Directive{}, errors.Wrapf(ErrMissingArguments, "line %q", line)
	}
	keyword := line[:idx]
	args, err := parseArguments(strings.TrimLeft(line[idx:], " \t"))
	if err != nil {
		return Directive{}, errors.Wrapf(err, "line %q", line)
	}
	return NewDirective(keyword, args...)
}

func parseArguments(raw string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		state   = unquoted
		inArg   bool
		escaped bool
	)
	for i := 0; i < len(raw); {
		r, size := utf8.DecodeRuneInString(raw[i:])
		// raw bytes of the current rune, kept as is so invalid UTF-8 survives
		lit := raw[i : i+size]
		switch state {
		case unquoted:
			switch {
			case r == ' ' || r == '\t':
				if inArg {
					args = append(args, cur.String())
					cur.Reset()
					inArg = false
				}
			case r == '"':
				state, inArg = doubleQuoted, true
			case r == '\'':
				state, inArg = singleQuoted, true
			default:
				cur.WriteString(lit)
				inArg = true
			}
		case doubleQuoted:
			switch {
			case escaped:
				if b, ok := hexByte(raw[i+size:]); r == 'x' && ok {
					cur.WriteByte(b)
					size += 2
				} else if u, ok := unescape(r); ok {
					cur.WriteByte(u)
				} else {
					cur.WriteString(lit)
				}
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				state = unquoted
			default:
				cur.WriteString(lit)
			}
		case singleQuoted:
			switch {
			case escaped:
				if r != '\'' {
					cur.WriteByte('\\')
				}
				cur.WriteString(lit)
				escaped = false
			case r == '\\':
				escaped = true
			case r == '\'':
				state = unquoted
			default:
				cur.WriteString(lit)
			}
		}
		i += size
	}
	if state != unquoted || escaped {
		return nil, errors.Wrapf(ErrUnbalancedQuotes, "arguments %q", raw)
	}
	if inArg {
		args = append(args, cur.String())
	}
	return args, nil
}

func unescape(r rune) (byte, bool) {
	switch r {
	case 'n':
		return '\n', true
	case 'r':
		return '\r', true
	case 't':
		return '\t', true
	case 'a':
		return '\a', true
	case 'b':
		return '\b', true
	default:
		return 0, false
	}
}

// hexByte decodes the two hex digits at the start of s.
func hexByte(s string) (byte, bool) {
	if len(s) < 2 {
		return 0, false
	}
	v, err := strconv.ParseUint(s[:2], 16, 8)
	if err != nil {
		return 0, false
	}
	return byte(v), true
}
