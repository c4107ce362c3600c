package router

import (
	"regexp"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/searchktools/tiny-server/core/http"
)

// ErrInvalidPattern is returned (wrapped) when a route pattern cannot be
// compiled.
var ErrInvalidPattern = errors.New("invalid route pattern")

// Params maps placeholder names to the path substrings they captured.
type Params map[string]string

// CompiledRoute is a Route turned into an anchored regular expression plus
// the ordered names of its placeholders.
type CompiledRoute struct {
	Method     string
	Pattern    string
	Regexp     *regexp.Regexp
	ParamNames []string
	Handler    http.HandlerFunc
}

// Matcher is the immutable lookup structure built from a Table. It is safe
// for concurrent use because nothing mutates it after Compile.
type Matcher struct {
	routes map[string][]CompiledRoute
}

// Compile compiles every route of t. The first pattern that fails to compile
// aborts compilation.
func Compile(t *Table) (*Matcher, error) {
	m := &Matcher{routes: make(map[string][]CompiledRoute, len(t.byMethod))}

	for _, route := range t.all {
		re, names, err := CompilePattern(route.Pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "%s %s", route.Method, route.Pattern)
		}
		m.routes[route.Method] = append(m.routes[route.Method], CompiledRoute{
			Method:     route.Method,
			Pattern:    route.Pattern,
			Regexp:     re,
			ParamNames: names,
			Handler:    route.Handler,
		})
	}

	return m, nil
}

// MustCompile is like Compile but panics on an invalid pattern.
func MustCompile(t *Table) *Matcher {
	m, err := Compile(t)
	if err != nil {
		panic(err)
	}
	return m
}

// CompilePattern turns a route pattern into an anchored expression.
//
// Literal segments match exactly. ":name" captures one segment, ":name(expr)"
// captures one segment matching expr, and a trailing "*name" captures the
// rest of the path. Constraint expressions cannot contain '/' or capture
// groups of their own.
func CompilePattern(pattern string) (*regexp.Regexp, []string, error) {
	segments := strings.Split(pattern, "/")
	names := make([]string, 0, len(segments))

	var b strings.Builder
	b.WriteByte('^')
	for i, seg := range segments {
		if i > 0 {
			b.WriteByte('/')
		}
		if seg == "" {
			continue
		}

		switch seg[0] {
		case ':':
			name, expr, err := splitPlaceholder(seg[1:])
			if err != nil {
				return nil, nil, err
			}
			if expr == "" {
				expr = "[^/]+"
			}
			names = append(names, name)
			b.WriteString("(" + expr + ")")
		case '*':
			if i != len(segments)-1 {
				return nil, nil, errors.Wrapf(ErrInvalidPattern, "wildcard %q must be the last segment", seg)
			}
			if len(seg) == 1 {
				return nil, nil, errors.Wrap(ErrInvalidPattern, "wildcard needs a name")
			}
			names = append(names, seg[1:])
			b.WriteString("(.*)")
		default:
			b.WriteString(regexp.QuoteMeta(seg))
		}
	}
	b.WriteByte('$')

	if dups := lo.FindDuplicates(names); len(dups) > 0 {
		return nil, nil, errors.Wrapf(ErrInvalidPattern, "placeholder %q used twice", dups[0])
	}

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, nil, errors.Mark(errors.Wrapf(err, "pattern %q", pattern), ErrInvalidPattern)
	}
	if re.NumSubexp() != len(names) {
		return nil, nil, errors.Wrap(ErrInvalidPattern, "constraints must not contain capture groups")
	}

	return re, names, nil
}

// splitPlaceholder splits "id(\d+)" into "id" and `\d+`.
func splitPlaceholder(s string) (name, expr string, err error) {
	name = s
	if open := strings.IndexByte(s, '('); open != -1 {
		if !strings.HasSuffix(s, ")") || open == len(s)-2 {
			return "", "", errors.Wrapf(ErrInvalidPattern, "malformed constraint in %q", s)
		}
		name, expr = s[:open], s[open+1:len(s)-1]
	}
	if name == "" {
		return "", "", errors.Wrap(ErrInvalidPattern, "placeholder needs a name")
	}
	return name, expr, nil
}

// Match returns the handler of the first route registered for method whose
// pattern matches the whole path, and the parameters it captured.
func (m *Matcher) Match(method, path string) (http.HandlerFunc, Params, bool) {
	for i := range m.routes[method] {
		route := &m.routes[method][i]

		loc := route.Regexp.FindStringSubmatchIndex(path)
		if loc == nil {
			continue
		}

		params := make(Params, len(route.ParamNames))
		for n, name := range route.ParamNames {
			start, end := 2*(n+1), 2*(n+1)+1
			if end >= len(loc) || loc[start] < 0 {
				continue
			}
			params[name] = path[loc[start]:loc[end]]
		}
		return route.Handler, params, true
	}

	return nil, nil, false
}

// Routes returns the compiled routes for method in match order.
func (m *Matcher) Routes(method string) []CompiledRoute {
	return slices.Clone(m.routes[method])
}

// Methods returns the methods that have at least one route, sorted.
func (m *Matcher) Methods() []string {
	methods := lo.Keys(m.routes)
	slices.Sort(methods)
	return methods
}
