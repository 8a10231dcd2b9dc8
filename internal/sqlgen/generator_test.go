package sqlgen

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kdowney/storewise/internal/llm"
	"github.com/kdowney/storewise/internal/planner"
	"github.com/kdowney/storewise/internal/schema"
)

const sheetYAML = `
tables:
  - name: orders
    columns:
      - {name: OrderID, type: INTEGER}
      - {name: OrderDate, type: TEXT}
  - name: order_details
    columns:
      - {name: OrderID, type: INTEGER}
      - {name: UnitPrice, type: REAL}
      - {name: Quantity, type: INTEGER}
      - {name: Discount, type: REAL}
`

func testSheet(t *testing.T) *schema.CheatSheet {
	t.Helper()
	cs, err := schema.Parse([]byte(sheetYAML))
	if err != nil {
		t.Fatal(err)
	}
	return cs
}

func TestGenerate_StripsFencesAndAppliesRepairs(t *testing.T) {
	client := llm.NewScriptedClient(llm.Reply{
		Text: "```sql\nSELECT SUM(UnitPrice * Quantity) FROM \"Order Details\" WHERE ShipDate >= '1997-06-01'\n```",
	})
	g := New(client, testSheet(t), DefaultRepairs(), time.Second)

	stmt, err := g.Generate(context.Background(), Request{Query: "total sales"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if strings.Contains(stmt, "Order Details") {
		t.Errorf("quoted table not repaired: %q", stmt)
	}
	if strings.Contains(stmt, "ShipDate") {
		t.Errorf("ShipDate not repaired to OrderDate: %q", stmt)
	}
	if !strings.Contains(stmt, "order_details") || !strings.Contains(stmt, "OrderDate") {
		t.Errorf("repairs missing from: %q", stmt)
	}
}

func TestGenerate_PromptEmbedsSheetAndConstraints(t *testing.T) {
	client := llm.NewScriptedClient(llm.Reply{Text: "SELECT 1"})
	g := New(client, testSheet(t), nil, time.Second)

	_, err := g.Generate(context.Background(), Request{
		Query: "Total sales during Summer 1997",
		Constraints: []planner.Constraint{
			{Name: "date_range", Value: "1997-06-01..1997-08-31", Derivation: "calendar"},
		},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	prompt := client.Prompts[0]
	if !strings.Contains(prompt, "Table: order_details") {
		t.Error("prompt missing cheat sheet")
	}
	if !strings.Contains(prompt, "OrderDate >= '1997-06-01' AND OrderDate <= '1997-08-31'") {
		t.Error("prompt missing rendered date range constraint")
	}
	if strings.Contains(prompt, "Previous query") {
		t.Error("first attempt must not mention a previous query")
	}
}

func TestGenerate_RepairPromptCarriesError(t *testing.T) {
	client := llm.NewScriptedClient(llm.Reply{Text: "SELECT OrderDate FROM orders"})
	g := New(client, testSheet(t), nil, time.Second)

	_, err := g.Generate(context.Background(), Request{
		Query:     "orders by date",
		PrevQuery: "SELECT ShipDate FROM orders",
		PrevError: "no such column: ShipDate",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	prompt := client.Prompts[0]
	if !strings.Contains(prompt, "no such column: ShipDate") {
		t.Error("repair prompt missing prior execution error")
	}
	if !strings.Contains(prompt, "SELECT ShipDate FROM orders") {
		t.Error("repair prompt missing prior query text")
	}
}

func TestGenerate_SanitizationFailureIsError(t *testing.T) {
	client := llm.NewScriptedClient(llm.Reply{Text: "DROP TABLE orders"})
	g := New(client, testSheet(t), nil, time.Second)

	_, err := g.Generate(context.Background(), Request{Query: "q"})
	if !errors.Is(err, ErrSanitization) {
		t.Errorf("err = %v, want ErrSanitization", err)
	}
}

func TestGenerate_TimeoutPropagates(t *testing.T) {
	client := llm.NewScriptedClient(llm.Reply{Err: llm.ErrTimeout})
	g := New(client, testSheet(t), nil, time.Second)

	_, err := g.Generate(context.Background(), Request{Query: "q"})
	if !errors.Is(err, llm.ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
}

func TestApplyRepairs_WordBoundary(t *testing.T) {
	repairs := []IdentifierRepair{{From: "ShipDate", To: "OrderDate"}}
	got := ApplyRepairs("SELECT ShipDateRegion, ShipDate FROM orders", repairs)
	if got != "SELECT ShipDateRegion, OrderDate FROM orders" {
		t.Errorf("got %q", got)
	}
}
