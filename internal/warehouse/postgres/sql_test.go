package postgres

import "testing"

func TestInsertSQL(t *testing.T) {
	got := insertSQL(fqn("raw", "customers"), []string{"id", "email"}, 2)
	want := `INSERT INTO "raw"."customers" ("id","email") VALUES ($1,$2),($3,$4)`
	if got != want {
		t.Fatalf("insertSQL:\n got %s\nwant %s", got, want)
	}
}

func TestUpsertSQL(t *testing.T) {
	got := upsertSQL(fqn("raw", "customers"), []string{"id", "email", "country"}, []string{"id"}, []string{"email", "country"}, 1)
	want := `INSERT INTO "raw"."customers" ("id","email","country") VALUES ($1,$2,$3)` +
		` ON CONFLICT ("id") DO UPDATE SET "email" = EXCLUDED."email", "country" = EXCLUDED."country"`
	if got != want {
		t.Fatalf("upsertSQL:\n got %s\nwant %s", got, want)
	}
}

func TestUpsertSQLAllColumnsAreKeys(t *testing.T) {
	got := upsertSQL(fqn("raw", "customers"), []string{"id", "email"}, []string{"id", "email"}, nil, 1)
	want := `INSERT INTO "raw"."customers" ("id","email") VALUES ($1,$2)` +
		` ON CONFLICT ("id","email") DO NOTHING`
	if got != want {
		t.Fatalf("upsertSQL:\n got %s\nwant %s", got, want)
	}
}

func TestFQNQuoting(t *testing.T) {
	if got := fqn("", "t"); got != `"t"` {
		t.Fatalf("bare table: %s", got)
	}
	if got := fqn("raw", `odd"name`); got != `"raw"."odd""name"` {
		t.Fatalf("quote escaping: %s", got)
	}
}

func TestFlatten(t *testing.T) {
	got := flatten([][]any{{1, "a"}, {2, nil}})
	if len(got) != 4 || got[0] != 1 || got[3] != nil {
		t.Fatalf("flatten: %#v", got)
	}
}
