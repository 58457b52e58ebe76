package mysql

import "testing"

func TestInsertSQL(t *testing.T) {
	got := insertSQL(fqn("warehouse", "orders"), []string{"order_id", "status"}, 3)
	want := "INSERT INTO `warehouse`.`orders` (`order_id`,`status`) VALUES (?,?),(?,?),(?,?)"
	if got != want {
		t.Fatalf("insertSQL:\n got %s\nwant %s", got, want)
	}
}

func TestUpsertSQL(t *testing.T) {
	got := upsertSQL(ident("orders"), []string{"order_id", "status", "quantity"}, []string{"status", "quantity"}, 1)
	want := "INSERT INTO `orders` (`order_id`,`status`,`quantity`) VALUES (?,?,?)" +
		" ON DUPLICATE KEY UPDATE `status` = VALUES(`status`), `quantity` = VALUES(`quantity`)"
	if got != want {
		t.Fatalf("upsertSQL:\n got %s\nwant %s", got, want)
	}
}

func TestUpsertSQLAllColumnsAreKeys(t *testing.T) {
	got := upsertSQL(ident("orders"), []string{"order_id", "line_no"}, nil, 1)
	want := "INSERT INTO `orders` (`order_id`,`line_no`) VALUES (?,?)" +
		" ON DUPLICATE KEY UPDATE `order_id` = `order_id`"
	if got != want {
		t.Fatalf("upsertSQL:\n got %s\nwant %s", got, want)
	}
}

func TestIdentEscaping(t *testing.T) {
	if got := ident("odd`name"); got != "`odd``name`" {
		t.Fatalf("ident: %s", got)
	}
	if got := fqn("", "t"); got != "`t`" {
		t.Fatalf("bare fqn: %s", got)
	}
}
