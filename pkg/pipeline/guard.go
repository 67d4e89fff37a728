package pipeline

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/mygoal-javadeveloper/Blend360-LLM-retail-insights/pkg/catalog"
)

// selectFamily are the leading keywords accepted as data-query statements.
var selectFamily = map[string]bool{
	"select": true,
	"with":   true,
}

// mutationVerbs are rejected wherever they appear as unquoted keywords, not
// only in leading position. A quoted identifier spelled like a verb is an
// identifier, not a verb.
var mutationVerbs = map[string]bool{
	"insert": true, "update": true, "delete": true, "drop": true,
	"alter": true, "create": true, "truncate": true, "grant": true,
	"revoke": true, "merge": true, "vacuum": true, "replace": true,
}

// forbiddenKeywords are engine constructs that can touch the filesystem,
// session state, or other databases even when nominally read-only.
var forbiddenKeywords = map[string]bool{
	"attach": true, "detach": true, "install": true, "load": true,
	"copy": true, "export": true, "import": true, "pragma": true,
	"call": true, "set": true, "checkpoint": true,
}

// forbiddenFunctions are table functions that read from or probe the host
// environment.
var forbiddenFunctions = map[string]bool{
	"read_csv": true, "read_csv_auto": true, "read_parquet": true,
	"read_json": true, "read_json_auto": true, "read_text": true,
	"read_blob": true, "glob": true, "getenv": true,
}

// Guard decides accept/reject for candidate statements under the read-only,
// single-statement, scope-limited policy. It is deterministic,
// side-effect-free, and never calls the language backend. Verdicts are
// cached per statement text, scope, and schema fingerprint; re-validating
// identical input yields the identical verdict.
type Guard struct {
	log   *slog.Logger
	cache *ttlcache.Cache[string, Verdict]
}

func NewGuard(log *slog.Logger, ttl time.Duration) *Guard {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, Verdict](ttl),
	)
	go cache.Start()
	return &Guard{log: log, cache: cache}
}

func (g *Guard) Close() {
	g.cache.Stop()
}

// Validate applies the policy rules in order; the first failure
// short-circuits to a rejection.
func (g *Guard) Validate(cand CandidateStatement, desc catalog.Descriptor) Verdict {
	key := desc.Fingerprint() + "\x00" + cand.Request.Scope.String() + "\x00" + cand.SQL
	if item := g.cache.Get(key); item != nil {
		return item.Value()
	}

	verdict := g.validate(cand, desc)
	g.cache.Set(key, verdict, ttlcache.DefaultTTL)

	if !verdict.Accepted {
		g.log.Info("guard: rejected statement",
			"kind", verdict.Kind,
			"detail", verdict.Detail,
			"scope", cand.Request.Scope.String())
	}
	return verdict
}

func (g *Guard) validate(cand CandidateStatement, desc catalog.Descriptor) Verdict {
	stripped := stripComments(cand.SQL)

	// Rule 1: exactly one top-level statement.
	statements := splitStatements(stripped)
	if len(statements) == 0 {
		return rejected(KindMalformedStatement, "empty statement")
	}
	if len(statements) > 1 {
		return rejected(KindUnsafeOperation,
			fmt.Sprintf("expected one statement, found %d", len(statements)))
	}
	stmt := statements[0]
	tokens := tokenize(stmt)

	// Rule 2: leading keyword must be a data-query verb.
	kw := firstKeyword(stmt)
	if kw == "" {
		return rejected(KindMalformedStatement, "statement has no leading keyword")
	}
	if !selectFamily[kw] {
		return rejected(KindUnsafeOperation, fmt.Sprintf("statement verb %q is not read-only", kw))
	}

	// Rules 2+3: no mutation verb or forbidden construct anywhere.
	for _, tok := range tokens {
		if !tok.ident || tok.quoted {
			continue
		}
		if mutationVerbs[tok.text] {
			return rejected(KindUnsafeOperation, fmt.Sprintf("mutation verb %q is not allowed", tok.text))
		}
		if forbiddenKeywords[tok.text] {
			return rejected(KindUnsafeOperation, fmt.Sprintf("construct %q is not allowed", tok.text))
		}
		if forbiddenFunctions[tok.text] {
			return rejected(KindUnsafeOperation, fmt.Sprintf("function %q is not allowed", tok.text))
		}
	}

	// Rule 4: every table reference must resolve within the scope. A string
	// literal in table position is a DuckDB replacement scan over a file or
	// URL, which is a host read.
	refs := extractTableRefs(tokens)
	if len(refs.literals) > 0 {
		return rejected(KindUnsafeOperation,
			fmt.Sprintf("table source %s is a file or URL, not a catalog table", refs.literals[0]))
	}
	for _, ref := range refs.tables {
		if refs.ctes[ref] {
			continue
		}
		if !desc.HasTable(ref) {
			return rejected(KindUnknownTable, fmt.Sprintf("table %q is not present in the store", ref))
		}
		if !cand.Request.Scope.All() && !strings.EqualFold(ref, cand.Request.Scope.Table) {
			return rejected(KindUnknownTable,
				fmt.Sprintf("table %q is outside the requested scope %q", ref, cand.Request.Scope.Table))
		}
	}

	// Rule 5: column plausibility, advisory only.
	notes := columnNotes(tokens, refs, desc)

	return Verdict{Accepted: true, Notes: notes}
}

func rejected(kind ErrorKind, detail string) Verdict {
	return Verdict{Accepted: false, Kind: kind, Detail: detail}
}
