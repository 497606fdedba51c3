// Package metadata reconstructs per-column provenance for SELECT result
// sets from the SQL Server system catalog and derives whether a result set
// is safely editable.
package metadata

import (
	"regexp"
	"strings"
)

// TableRef is a table reference discovered in query text.
type TableRef struct {
	Schema string // empty when unqualified
	Table  string
	Alias  string
}

// tableRefPattern matches FROM/JOIN followed by an optionally
// schema-qualified, optionally bracketed table name and an optional alias.
var tableRefPattern = regexp.MustCompile(
	`(?i)\b(?:FROM|JOIN)\s+(?:\[?([A-Za-z_][A-Za-z0-9_]*)\]?\s*\.\s*)?\[?([A-Za-z_#][A-Za-z0-9_]*)\]?(?:\s+(?:AS\s+)?\[?([A-Za-z_][A-Za-z0-9_]*)\]?)?`)

// aliasStopWords are keywords that follow a table name but are not aliases.
var aliasStopWords = map[string]struct{}{
	"WHERE": {}, "ON": {}, "INNER": {}, "LEFT": {}, "RIGHT": {}, "FULL": {},
	"CROSS": {}, "JOIN": {}, "GROUP": {}, "ORDER": {}, "HAVING": {},
	"UNION": {}, "EXCEPT": {}, "INTERSECT": {}, "OPTION": {}, "SET": {},
	"OUTER": {}, "AS": {}, "WITH": {}, "FOR": {}, "PIVOT": {}, "UNPIVOT": {},
}

// ScanTableReferences extracts referenced tables from query text by pattern
// matching on FROM and JOIN clauses. This is a best-effort heuristic, not a
// parser: subqueries, CTEs aliased differently per branch, and dynamic SQL
// are not reliably resolved, and false negatives simply degrade editability.
func ScanTableReferences(query string) []TableRef {
	matches := tableRefPattern.FindAllStringSubmatch(query, -1)

	var refs []TableRef
	seen := make(map[string]struct{})
	for _, m := range matches {
		ref := TableRef{Schema: m[1], Table: m[2], Alias: m[3]}
		if _, stop := aliasStopWords[strings.ToUpper(ref.Alias)]; stop {
			ref.Alias = ""
		}
		if _, stop := aliasStopWords[strings.ToUpper(ref.Table)]; stop {
			continue
		}

		key := strings.ToLower(ref.Schema + "." + ref.Table)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		refs = append(refs, ref)
	}
	return refs
}
