package pipeline

import (
	"strings"
	"unicode"
)

// stripComments removes line (--) and block (/* */) comments, leaving string
// and quoted-identifier contents untouched.
func stripComments(sqlText string) string {
	var sb strings.Builder
	inSingle := false
	inDouble := false
	i := 0
	for i < len(sqlText) {
		c := sqlText[i]
		switch {
		case inSingle:
			sb.WriteByte(c)
			if c == '\'' {
				// '' escapes a quote inside the literal
				if i+1 < len(sqlText) && sqlText[i+1] == '\'' {
					sb.WriteByte('\'')
					i++
				} else {
					inSingle = false
				}
			}
			i++
		case inDouble:
			sb.WriteByte(c)
			if c == '"' {
				inDouble = false
			}
			i++
		case c == '\'':
			inSingle = true
			sb.WriteByte(c)
			i++
		case c == '"':
			inDouble = true
			sb.WriteByte(c)
			i++
		case c == '-' && i+1 < len(sqlText) && sqlText[i+1] == '-':
			for i < len(sqlText) && sqlText[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(sqlText) && sqlText[i+1] == '*':
			i += 2
			for i+1 < len(sqlText) && !(sqlText[i] == '*' && sqlText[i+1] == '/') {
				i++
			}
			i += 2
			sb.WriteByte(' ')
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String()
}

// splitStatements splits on top-level semicolons, ignoring semicolons inside
// string literals and quoted identifiers. Empty fragments are dropped.
func splitStatements(sqlText string) []string {
	var statements []string
	var sb strings.Builder
	inSingle := false
	inDouble := false
	for i := 0; i < len(sqlText); i++ {
		c := sqlText[i]
		switch {
		case inSingle:
			sb.WriteByte(c)
			if c == '\'' {
				if i+1 < len(sqlText) && sqlText[i+1] == '\'' {
					sb.WriteByte('\'')
					i++
				} else {
					inSingle = false
				}
			}
		case inDouble:
			sb.WriteByte(c)
			if c == '"' {
				inDouble = false
			}
		case c == '\'':
			inSingle = true
			sb.WriteByte(c)
		case c == '"':
			inDouble = true
			sb.WriteByte(c)
		case c == ';':
			if s := strings.TrimSpace(sb.String()); s != "" {
				statements = append(statements, s)
			}
			sb.Reset()
		default:
			sb.WriteByte(c)
		}
	}
	if s := strings.TrimSpace(sb.String()); s != "" {
		statements = append(statements, s)
	}
	return statements
}

// token is one lexical unit of a statement. Identifiers are lowercased;
// quoted identifiers keep their content but lose the quotes.
type token struct {
	text   string
	ident  bool // bare or quoted identifier (or keyword)
	quoted bool
}

// tokenize performs a minimal lex of a comment-free statement, good enough
// for table-reference and column-plausibility checks. String literals become
// a single opaque token.
func tokenize(sqlText string) []token {
	var tokens []token
	i := 0
	for i < len(sqlText) {
		c := sqlText[i]
		switch {
		case unicode.IsSpace(rune(c)):
			i++
		case c == '\'':
			j := i + 1
			for j < len(sqlText) {
				if sqlText[j] == '\'' {
					if j+1 < len(sqlText) && sqlText[j+1] == '\'' {
						j += 2
						continue
					}
					break
				}
				j++
			}
			if j < len(sqlText) {
				j++
			}
			tokens = append(tokens, token{text: sqlText[i:j]})
			i = j
		case c == '"':
			j := i + 1
			for j < len(sqlText) && sqlText[j] != '"' {
				j++
			}
			content := sqlText[i+1 : min(j, len(sqlText))]
			tokens = append(tokens, token{text: strings.ToLower(content), ident: true, quoted: true})
			i = j + 1
		case isIdentStart(c):
			j := i
			for j < len(sqlText) && isIdentPart(sqlText[j]) {
				j++
			}
			tokens = append(tokens, token{text: strings.ToLower(sqlText[i:j]), ident: true})
			i = j
		default:
			tokens = append(tokens, token{text: string(c)})
			i++
		}
	}
	return tokens
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// firstKeyword returns the statement's leading keyword, lowercased.
func firstKeyword(sqlText string) string {
	tokens := tokenize(sqlText)
	if len(tokens) == 0 || !tokens[0].ident {
		return ""
	}
	return tokens[0].text
}
