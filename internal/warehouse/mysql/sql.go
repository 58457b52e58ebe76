package mysql

import (
	"fmt"
	"strings"
)

// insertSQL builds a multi-row INSERT with ? placeholders:
//
//	INSERT INTO `warehouse`.`customers` (`a`,`b`) VALUES (?,?),(?,?)
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

// upsertSQL extends insertSQL with the duplicate-key clause:
//
//	... ON DUPLICATE KEY UPDATE `c` = VALUES(`c`)
//
// An empty update set (every column is a key) becomes a self-assignment of
// the first column, MySQL's insert-or-skip idiom; unlike INSERT IGNORE it
// only suppresses duplicate-key conflicts, not other errors.
func upsertSQL(target string, cols, update []string, rowCount int) string {
	var sb strings.Builder
	sb.WriteString(insertSQL(target, cols, rowCount))
	sb.WriteString(" ON DUPLICATE KEY UPDATE ")
	if len(update) == 0 {
		sb.WriteString(fmt.Sprintf("%s = %s", ident(cols[0]), ident(cols[0])))
		return sb.String()
	}
	sets := make([]string, len(update))
	for i, c := range update {
		sets[i] = fmt.Sprintf("%s = VALUES(%s)", ident(c), ident(c))
	}
	sb.WriteString(strings.Join(sets, ", "))
	return sb.String()
}

// ident quotes a single identifier segment with backticks.
func ident(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

// fqn quotes the database-qualified name.
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
