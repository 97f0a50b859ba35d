package config

import (
	"context"
	"strings"

	"github.com/katariastoneworld/stoneworld_backend/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const locationColumn = "location"

// LocationGuardPlugin scopes queries, updates and deletes to the caller's
// location when the model has a location column.
//
// NOTE:
// - Raw SQL is not rewritten. Raw queries must filter on location themselves.
// - Bypass is explicit via context flags.
type LocationGuardPlugin struct{}

func NewLocationGuardPlugin() *LocationGuardPlugin { return &LocationGuardPlugin{} }

func (p *LocationGuardPlugin) Name() string { return "location_guard" }

func (p *LocationGuardPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register("location_guard:query", locationGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Row().Before("gorm:row").Register("location_guard:row", locationGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("location_guard:update", locationGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("location_guard:delete", locationGuardCallback); err != nil {
		return err
	}
	return nil
}

func locationGuardCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil {
		return
	}
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	if shouldBypassLocationScope(ctx) {
		return
	}
	location := locationFromContext(ctx)
	if location == "" {
		return
	}
	if db.Statement.Schema == nil {
		return
	}
	if db.Statement.Schema.LookUpField(locationColumn) == nil {
		return
	}
	if whereHasLocation(db.Statement.Clauses["WHERE"]) {
		return
	}

	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: db.Statement.Table, Name: locationColumn},
				Value:  location,
			},
		},
	})
}

func locationFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(appctx.ContextKeyLocation).(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func shouldBypassLocationScope(ctx context.Context) bool {
	if v, ok := ctx.Value(appctx.ContextKeySkipLocationScope).(bool); ok && v {
		return true
	}
	return false
}

func whereHasLocation(c clause.Clause) bool {
	if c.Expression == nil {
		return false
	}
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if exprHasLocation(e) {
			return true
		}
	}
	return false
}

func exprHasLocation(e clause.Expression) bool {
	switch v := e.(type) {
	case clause.Eq:
		return colIsLocation(v.Column)
	case clause.Neq:
		return colIsLocation(v.Column)
	case clause.IN:
		return colIsLocation(v.Column)
	case clause.AndConditions:
		for _, x := range v.Exprs {
			if exprHasLocation(x) {
				return true
			}
		}
		return false
	case clause.OrConditions:
		for _, x := range v.Exprs {
			if exprHasLocation(x) {
				return true
			}
		}
		return false
	case clause.Expr:
		return strings.Contains(strings.ToLower(v.SQL), locationColumn)
	case clause.NamedExpr:
		return strings.Contains(strings.ToLower(v.SQL), locationColumn)
	default:
		return false
	}
}

func colIsLocation(col any) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, locationColumn) || strings.HasSuffix(strings.ToLower(c), "."+locationColumn)
	case clause.Column:
		return strings.EqualFold(c.Name, locationColumn)
	default:
		return false
	}
}
