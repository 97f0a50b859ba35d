package config

import (
	"context"
	"testing"

	"github.com/katariastoneworld/stoneworld_backend/appctx"
	"gorm.io/gorm/clause"
)

func TestExprHasLocation(t *testing.T) {
	cases := []struct {
		name string
		expr clause.Expression
		want bool
	}{
		{"eq column", clause.Eq{Column: clause.Column{Name: "location"}, Value: "Bhondsi"}, true},
		{"eq string", clause.Eq{Column: "customers.location", Value: "Bhondsi"}, true},
		{"in", clause.IN{Column: "location", Values: []any{"a"}}, true},
		{"raw", clause.Expr{SQL: "customers.location = ?"}, true},
		{"other column", clause.Eq{Column: clause.Column{Name: "phone"}, Value: "1"}, false},
		{"nested and", clause.AndConditions{Exprs: []clause.Expression{
			clause.Eq{Column: "id", Value: 1},
			clause.Eq{Column: "location", Value: "x"},
		}}, true},
		{"nested or without", clause.OrConditions{Exprs: []clause.Expression{
			clause.Eq{Column: "id", Value: 1},
		}}, false},
	}
	for _, tc := range cases {
		if got := exprHasLocation(tc.expr); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestShouldBypassLocationScope(t *testing.T) {
	ctx := context.Background()
	if shouldBypassLocationScope(ctx) {
		t.Fatalf("empty context must not bypass")
	}
	if !shouldBypassLocationScope(appctx.Set(ctx, appctx.ContextKeySkipLocationScope, true)) {
		t.Fatalf("skip flag must bypass")
	}
	if shouldBypassLocationScope(appctx.Set(ctx, appctx.ContextKeySkipLocationScope, false)) {
		t.Fatalf("false skip flag must not bypass")
	}
	// an admin role is still scoped to the location it signed in with
	if shouldBypassLocationScope(appctx.Set(ctx, appctx.ContextKeyRole, "admin")) {
		t.Fatalf("admin role must not bypass")
	}
	if got := locationFromContext(appctx.Set(ctx, appctx.ContextKeyLocation, " Tapugada ")); got != "Tapugada" {
		t.Fatalf("location = %q", got)
	}
}
