package postgres

import (
	"fmt"
	"strings"
)

// insertSQL builds a multi-row INSERT with numbered placeholders:
//
//	INSERT INTO "raw"."customers" ("a","b") VALUES ($1,$2),($3,$4)
func insertSQL(target string, cols []string, rowCount int) string {
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(target)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(mapIdent(cols), ","))
	sb.WriteString(") VALUES ")
	writePlaceholders(&sb, len(cols), rowCount)
	return sb.String()
}

// upsertSQL extends insertSQL with the conflict clause:
//
//	... ON CONFLICT ("k") DO UPDATE SET "c" = EXCLUDED."c"
//
// An empty update set (every column is a key) becomes DO NOTHING, so
// conflicting rows are skipped instead of producing a bare SET clause.
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
		sets[i] = fmt.Sprintf("%s = EXCLUDED.%s", pgIdent(c), pgIdent(c))
	}
	sb.WriteString(strings.Join(sets, ", "))
	return sb.String()
}

func writePlaceholders(sb *strings.Builder, colCount, rowCount int) {
	n := 1
	for r := 0; r < rowCount; r++ {
		if r > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte('(')
		for c := 0; c < colCount; c++ {
			if c > 0 {
				sb.WriteByte(',')
			}
			fmt.Fprintf(sb, "$%d", n)
			n++
		}
		sb.WriteByte(')')
	}
}

// pgIdent safely quotes a single identifier segment.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// fqn quotes the schema-qualified target name. An empty namespace yields the
// bare quoted table name.
func fqn(schemaNS, table string) string {
	if schemaNS == "" {
		return pgIdent(table)
	}
	return pgIdent(schemaNS) + "." + pgIdent(table)
}

func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgIdent(c)
	}
	return out
}
