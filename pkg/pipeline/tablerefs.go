package pipeline

import (
	"fmt"
	"strings"

	"github.com/mygoal-javadeveloper/Blend360-LLM-retail-insights/pkg/catalog"
)

// reservedWords are idents that never count as table or column references.
var reservedWords = map[string]bool{
	"select": true, "from": true, "where": true, "group": true, "by": true,
	"order": true, "having": true, "limit": true, "offset": true, "as": true,
	"and": true, "or": true, "not": true, "in": true, "is": true, "null": true,
	"like": true, "ilike": true, "between": true, "case": true, "when": true,
	"then": true, "else": true, "end": true, "distinct": true, "on": true,
	"join": true, "inner": true, "left": true, "right": true, "full": true,
	"outer": true, "cross": true, "natural": true, "union": true, "all": true,
	"intersect": true, "except": true, "with": true, "cast": true,
	"interval": true, "using": true, "exists": true, "any": true, "some": true,
	"true": true, "false": true, "asc": true, "desc": true, "nulls": true,
	"first": true, "last": true, "over": true, "partition": true, "filter": true,
	"qualify": true, "values": true, "recursive": true, "lateral": true,
	// type names and interval units seen inside CAST/INTERVAL expressions
	"integer": true, "int": true, "bigint": true, "smallint": true,
	"varchar": true, "text": true, "double": true, "float": true, "real": true,
	"decimal": true, "numeric": true, "boolean": true, "date": true,
	"timestamp": true, "time": true, "day": true, "month": true, "year": true,
	"week": true, "hour": true, "minute": true, "second": true,
}

// tableRefs is what reference extraction learned about one statement.
type tableRefs struct {
	tables  []string        // table names referenced in FROM/JOIN position
	ctes    map[string]bool // names introduced by WITH
	aliases map[string]bool // table aliases introduced after a reference

	// literals are string literals in table position. DuckDB treats
	// FROM '<path-or-url>' as a replacement scan over a file, so these are
	// host reads, not catalog references.
	literals []string
}

// extractTableRefs walks the token stream and records every identifier in
// FROM/JOIN position, the CTE names introduced by a leading WITH, table
// aliases, and string literals in table position. Subqueries and
// table-function calls are skipped; dotted references record the final
// segment. A FROM inside a function-call argument list, as in
// EXTRACT(month FROM order_date), is not a reference site.
func extractTableRefs(tokens []token) tableRefs {
	refs := tableRefs{
		ctes:    make(map[string]bool),
		aliases: make(map[string]bool),
	}

	// CTE names: WITH name AS (...), name AS (...), ...
	if len(tokens) > 0 && tokens[0].ident && tokens[0].text == "with" {
		i := 1
		if i < len(tokens) && tokens[i].ident && tokens[i].text == "recursive" {
			i++
		}
		for i < len(tokens) {
			if !tokens[i].ident || reservedWords[tokens[i].text] {
				break
			}
			refs.ctes[tokens[i].text] = true
			i++
			// optional column list
			if i < len(tokens) && tokens[i].text == "(" {
				i = skipParens(tokens, i)
			}
			if i >= len(tokens) || !tokens[i].ident || tokens[i].text != "as" {
				break
			}
			i++
			if i >= len(tokens) || tokens[i].text != "(" {
				break
			}
			i = skipParens(tokens, i)
			if i < len(tokens) && tokens[i].text == "," {
				i++
				continue
			}
			break
		}
	}

	// inCall marks tokens inside a function-call argument list, identified
	// by an unquoted non-reserved identifier directly before the opening
	// paren. A bare paren group (subquery, IN list) is still scanned.
	inCall := make([]bool, len(tokens))
	var parens []bool
	for i, tok := range tokens {
		switch tok.text {
		case "(":
			call := i > 0 && tokens[i-1].ident && !tokens[i-1].quoted && !reservedWords[tokens[i-1].text]
			parens = append(parens, call)
		case ")":
			if len(parens) > 0 {
				parens = parens[:len(parens)-1]
			}
		}
		if len(parens) > 0 {
			inCall[i] = parens[len(parens)-1]
		}
	}

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if !tok.ident || tok.quoted {
			continue
		}
		if tok.text != "from" && tok.text != "join" {
			continue
		}
		if inCall[i] {
			continue
		}

		// a reference list follows; FROM may be comma-separated
		j := i + 1
		for j < len(tokens) {
			if tokens[j].text == "(" {
				// subquery or table-function argument list
				j = skipParens(tokens, j)
			} else if strings.HasPrefix(tokens[j].text, "'") {
				// replacement scan over a file or URL
				refs.literals = append(refs.literals, tokens[j].text)
				j++
				if j < len(tokens) && tokens[j].ident && tokens[j].text == "as" {
					j++
				}
				if j < len(tokens) && tokens[j].ident && !reservedWords[tokens[j].text] {
					refs.aliases[tokens[j].text] = true
					j++
				}
			} else if tokens[j].ident && !reservedWords[tokens[j].text] {
				name := tokens[j].text
				j++
				// dotted reference keeps the last segment
				for j+1 < len(tokens) && tokens[j].text == "." && tokens[j+1].ident {
					name = tokens[j+1].text
					j += 2
				}
				if j < len(tokens) && tokens[j].text == "(" {
					// table function, not a table
					j = skipParens(tokens, j)
				} else {
					refs.tables = append(refs.tables, name)
				}
				// optional alias
				if j < len(tokens) && tokens[j].ident && tokens[j].text == "as" {
					j++
				}
				if j < len(tokens) && tokens[j].ident && !reservedWords[tokens[j].text] {
					refs.aliases[tokens[j].text] = true
					j++
				}
			} else {
				break
			}

			if j < len(tokens) && tokens[j].text == "," && tokens[i].text == "from" {
				j++
				continue
			}
			break
		}
		i = j - 1
	}

	return refs
}

// skipParens advances past a balanced parenthesis group starting at open.
func skipParens(tokens []token, open int) int {
	depth := 0
	for i := open; i < len(tokens); i++ {
		switch tokens[i].text {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return len(tokens)
}

const maxColumnNotes = 3

// columnNotes resolves identifier references against the columns of the
// referenced tables, best-effort. Aliases, expressions, and computed columns
// make this ambiguous, so unresolved names produce low-confidence notes for
// observability, never a rejection.
func columnNotes(tokens []token, refs tableRefs, desc catalog.Descriptor) []string {
	known := make(map[string]bool)
	for name := range refs.ctes {
		known[name] = true
	}
	for name := range refs.aliases {
		known[name] = true
	}
	for _, ref := range refs.tables {
		known[ref] = true
		if t, ok := desc.Table(ref); ok {
			for _, col := range t.Columns {
				known[normalizeIdent(col.Name)] = true
			}
		}
	}

	// output aliases introduced by AS also never warrant a note
	for i := 0; i+1 < len(tokens); i++ {
		if tokens[i].ident && tokens[i].text == "as" && tokens[i+1].ident {
			known[tokens[i+1].text] = true
		}
	}

	var notes []string
	seen := make(map[string]bool)
	for i, tok := range tokens {
		if !tok.ident || reservedWords[tok.text] || known[tok.text] || seen[tok.text] {
			continue
		}
		// a following "(" marks a function call
		if i+1 < len(tokens) && tokens[i+1].text == "(" {
			continue
		}
		seen[tok.text] = true
		notes = append(notes, fmt.Sprintf("column %q did not resolve against the referenced tables", tok.text))
		if len(notes) >= maxColumnNotes {
			break
		}
	}
	return notes
}

func normalizeIdent(name string) string {
	return strings.ToLower(name)
}
