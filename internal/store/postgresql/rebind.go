package postgresql

import (
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
)

// rebind turns '?' placeholders into $n. Question marks inside quoted
// strings, quoted identifiers, dollar-quoted bodies and comments are left
// alone, and "??" stands for a literal '?' so the jsonb operators can be
// written as ??, ??| and ??&.
func rebind(query string) string {
	if !strings.ContainsAny(query, `'"$-/`) && !strings.Contains(query, "??") {
		return sqlx.Rebind(sqlx.DOLLAR, query)
	}

	var sb strings.Builder
	sb.Grow(len(query) + 10)
	n := 0
	for i := 0; i < len(query); {
		c := query[i]
		switch {
		case c == '?' && i+1 < len(query) && query[i+1] == '?':
			sb.WriteByte('?')
			i += 2
		case c == '?':
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			i++
		case c == '\'' || c == '"':
			end := closing(query, i+1, string(c))
			sb.WriteString(query[i:end])
			i = end
		case c == '-' && strings.HasPrefix(query[i:], "--"):
			end := closing(query, i+2, "\n")
			sb.WriteString(query[i:end])
			i = end
		case c == '/' && strings.HasPrefix(query[i:], "/*"):
			end := closing(query, i+2, "*/")
			sb.WriteString(query[i:end])
			i = end
		case c == '$':
			tag, ok := dollarTag(query, i)
			if !ok {
				sb.WriteByte(c)
				i++
				continue
			}
			end := closing(query, i+len(tag), tag)
			sb.WriteString(query[i:end])
			i = end
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String()
}

// closing returns the index just past the first delim at or after from, or
// len(query) when the span is unterminated. A doubled quote inside a quoted
// span is found as two delimiters in a row, which keeps the span open.
func closing(query string, from int, delim string) int {
	idx := strings.Index(query[from:], delim)
	if idx < 0 {
		return len(query)
	}
	return from + idx + len(delim)
}

// dollarTag reads the $tag$ opening a dollar-quoted body at i. A $ that
// follows an identifier or starts a positional parameter is not a tag.
func dollarTag(query string, i int) (string, bool) {
	if i > 0 && identByte(query[i-1]) {
		return "", false
	}
	j := i + 1
	if j < len(query) && query[j] >= '0' && query[j] <= '9' {
		return "", false
	}
	for j < len(query) && identByte(query[j]) {
		j++
	}
	if j >= len(query) || query[j] != '$' {
		return "", false
	}
	return query[i : j+1], true
}

func identByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
