package conf

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// well known keywords
const (
	KeywordPort      = "port"
	KeywordBind      = "bind"
	KeywordDir       = "dir"
	KeywordReplicaOf = "replicaof"
)

// errors
var (
	ErrBlankKeyword   = errors.New("keyword must not be blank")
	ErrIllegalKeyword = errors.New("keyword contains illegal characters, only alphanumerics, hyphens and underscores are allowed")
	ErrNoArguments    = errors.New("at least one argument is required")
)

var keywordPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Directive is one line of a valkey.conf: a keyword followed by its arguments.
type Directive struct {
	Keyword   string
	Arguments []string
}

// NewDirective validates and returns a directive.
func NewDirective(keyword string, args ...string) (Directive, error) {
	d := Directive{Keyword: keyword, Arguments: append([]string(nil), args...)}
	return d, d.Validate()
}

// Validate checks the keyword and argument count.
func (d Directive) Validate() error {
	if strings.TrimSpace(d.Keyword) == "" {
		return ErrBlankKeyword
	}
	if !keywordPattern.MatchString(d.Keyword) {
		return errors.Wrapf(ErrIllegalKeyword, "keyword %q", d.Keyword)
	}
	if len(d.Arguments) == 0 {
		return errors.Wrapf(ErrNoArguments, "keyword %q", d.Keyword)
	}
	return nil
}

func (d Directive) clone() Directive {
	return Directive{Keyword: d.Keyword, Arguments: append([]string(nil), d.Arguments...)}
}

func (d Directive) String() string {
	var sb strings.Builder
	sb.WriteString(d.Keyword)
	for _, arg := range d.Arguments {
		sb.WriteByte(' ')
		sb.WriteString(quote(arg))
	}
	return sb.String()
}
