package sqlite

import (
	"fmt"
	"strings"
)

// insertSQL builds a multi-row INSERT with ? placeholders:
//
//	INSERT INTO "main"."customers" ("a","b") VALUES (?,?),(?,?)
func insertSQL(target string, cols []string, rowCount int) string {
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(target)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(mapIdent(cols), ","))
	sb.WriteString(") VALUES ")
	row := "(" + strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",") + ")"
	for r := 0; r < rowCount; r++ {
		if r > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(row)
	}
	return sb.String()
}

// upsertSQL extends insertSQL with SQLite's ON CONFLICT clause, which shares
// Postgres's excluded.* pseudo-table. An empty update set (every column is a
// key) becomes DO NOTHING so conflicting rows are skipped.
func upsertSQL(target string, cols, keys, update []string, rowCount int) string {
	var sb strings.Builder
	sb.WriteString(insertSQL(target, cols, rowCount))
	sb.WriteString(" ON CONFLICT (")
	sb.WriteString(strings.Join(mapIdent(keys), ","))
	if len(update) == 0 {
		sb.WriteString(") DO NOTHING")
		return sb.String()
	}
	sb.WriteString(") DO UPDATE SET ")
	sets := make([]string, len(update))
	for i, c := range update {
		sets[i] = fmt.Sprintf("%s = excluded.%s", ident(c), ident(c))
	}
	sb.WriteString(strings.Join(sets, ", "))
	return sb.String()
}

// ident quotes a single identifier segment.
func ident(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// fqn quotes the schema-qualified name; SQLite only has attached-database
// namespaces ("main", "temp"), so an empty namespace yields the bare table.
func fqn(schemaNS, table string) string {
	if schemaNS == "" {
		return ident(table)
	}
	return ident(schemaNS) + "." + ident(table)
}

func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = ident(c)
	}
	return out
}
