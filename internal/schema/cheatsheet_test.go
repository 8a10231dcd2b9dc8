package schema

import (
	"strings"
	"testing"
)

const sheetYAML = `
tables:
  - name: orders
    columns:
      - {name: OrderID, type: INTEGER}
      - {name: CustomerID, type: TEXT}
      - {name: OrderDate, type: TEXT}
  - name: order_details
    columns:
      - {name: OrderID, type: INTEGER}
      - {name: ProductID, type: INTEGER}
      - {name: UnitPrice, type: REAL}
      - {name: Quantity, type: INTEGER}
      - {name: Discount, type: REAL}
`

func TestParse_Lookups(t *testing.T) {
	cs, err := Parse([]byte(sheetYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if !cs.HasTable("orders") || !cs.HasTable("ORDERS") {
		t.Error("HasTable should be case-insensitive")
	}
	if cs.HasTable("customers") {
		t.Error("HasTable matched a table not on the sheet")
	}
	if !cs.HasColumn("orders", "OrderDate") {
		t.Error("expected OrderDate on orders")
	}
	if cs.HasColumn("orders", "ShipDate") {
		t.Error("ShipDate is not on the sheet and must not resolve")
	}
}

func TestParse_RejectsEmptySheet(t *testing.T) {
	if _, err := Parse([]byte("tables: []")); err == nil {
		t.Error("expected error for sheet with no tables")
	}
	if _, err := Parse([]byte("tables:\n  - name: orders\n    columns: []")); err == nil {
		t.Error("expected error for table with no columns")
	}
}

func TestRender_ContainsTablesAndRules(t *testing.T) {
	cs, err := Parse([]byte(sheetYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	out := cs.Render()

	for _, want := range []string{
		"Table: orders",
		"OrderDate (TEXT)",
		"Table: order_details",
		"SUM(UnitPrice * Quantity * (1 - Discount))",
		"compare them as strings",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered sheet missing %q", want)
		}
	}
}
