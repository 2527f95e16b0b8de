package conf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Write writes c in valkey.conf format, one directive per line.
func Write(w io.Writer, c *Conf) error {
	bw := bufio.NewWriter(w)
	for _, d := range c.directives {
		if _, err := bw.WriteString(d.String()); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile writes c to path, truncating an existing file.
func WriteFile(path string, c *Conf) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrapf(err, "open conf file %s", path)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrapf(cerr, "close conf file %s", path)
		}
	}()
	if err = Write(f, c); err != nil {
		err = errors.Wrapf(err, "write conf file %s", path)
	}
	return
}

// quote wraps arg in double quotes when it is empty, holds whitespace or
// quote characters, or is not valid UTF-8. Inside the quotes, backslash
// escapes are used and stray bytes are written as \xHH.
func quote(arg string) string {
	if !needsQuotes(arg) {
		return arg
	}
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(arg); {
		r, size := utf8.DecodeRuneInString(arg[i:])
		switch {
		case r == utf8.RuneError && size == 1:
			fmt.Fprintf(&sb, `\x%02x`, arg[i])
		case r == '\\':
			sb.WriteString(`\\`)
		case r == '"':
			sb.WriteString(`\"`)
		case r == '\n':
			sb.WriteString(`\n`)
		case r == '\r':
			sb.WriteString(`\r`)
		case r == '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteString(arg[i : i+size])
		}
		i += size
	}
	sb.WriteByte('"')
	return sb.String()
}

func needsQuotes(arg string) bool {
	return arg == "" ||
		!utf8.ValidString(arg) ||
		strings.ContainsAny(arg, `"'`) ||
		strings.IndexFunc(arg, unicode.IsSpace) >= 0
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
