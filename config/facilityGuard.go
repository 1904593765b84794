package config

import (
	"context"
	"strings"

	"bitbucket.org/mmdatafocus/woundcare_backend/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FacilityGuardPlugin enforces multi-facility isolation by automatically scoping
// queries/updates/deletes to the request's facility_id when the model has a facility_id column.
//
// NOTE:
// - This does NOT apply to Raw SQL queries. Those must include facility_id manually.
// - Admin/internal bypass is explicit via context flags.
type FacilityGuardPlugin struct{}

func NewFacilityGuardPlugin() *FacilityGuardPlugin { return &FacilityGuardPlugin{} }

func (p *FacilityGuardPlugin) Name() string { return "facility_guard" }

func (p *FacilityGuardPlugin) Initialize(db *gorm.DB) error {
	// Query
	if err := db.Callback().Query().Before("gorm:query").Register("facility_guard:query", facilityGuardCallback); err != nil {
		return err
	}
	// Row (First/Take)
	if err := db.Callback().Row().Before("gorm:row").Register("facility_guard:row", facilityGuardCallback); err != nil {
		return err
	}
	// Update
	if err := db.Callback().Update().Before("gorm:update").Register("facility_guard:update", facilityGuardCallback); err != nil {
		return err
	}
	// Delete
	if err := db.Callback().Delete().Before("gorm:delete").Register("facility_guard:delete", facilityGuardCallback); err != nil {
		return err
	}
	return nil
}

func facilityGuardCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil {
		return
	}
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	if shouldBypassFacilityScope(ctx) {
		return
	}
	facilityID := facilityIdFromContext(ctx)
	if facilityID == "" {
		return
	}

	// Only apply if the current model/table includes a facility_id column.
	if db.Statement.Schema == nil {
		return
	}
	hasFacilityID := false
	for _, f := range db.Statement.Schema.Fields {
		if strings.EqualFold(f.DBName, "facility_id") {
			hasFacilityID = true
			break
		}
	}
	if !hasFacilityID {
		return
	}

	// Don't duplicate an explicit facility filter.
	if whereHasFacilityID(db.Statement.Clauses["WHERE"]) {
		return
	}

	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: db.Statement.Table, Name: "facility_id"},
				Value:  facilityID,
			},
		},
	})
}

func facilityIdFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(appctx.ContextKeyFacilityId).(string); ok && v != "" {
		return v
	}
	return ""
}

func shouldBypassFacilityScope(ctx context.Context) bool {
	if v, ok := ctx.Value(appctx.ContextKeySkipFacilityScope).(bool); ok && v {
		return true
	}
	if v, ok := ctx.Value(appctx.ContextKeyIsAdmin).(bool); ok && v {
		return true
	}
	return false
}

func whereHasFacilityID(c clause.Clause) bool {
	if c.Expression == nil {
		return false
	}
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if exprHasFacilityID(e) {
			return true
		}
	}
	return false
}

func exprHasFacilityID(e clause.Expression) bool {
	switch v := e.(type) {
	case clause.Eq:
		return colIsFacilityID(v.Column)
	case clause.Neq:
		return colIsFacilityID(v.Column)
	case clause.Gt:
		return colIsFacilityID(v.Column)
	case clause.Gte:
		return colIsFacilityID(v.Column)
	case clause.Lt:
		return colIsFacilityID(v.Column)
	case clause.Lte:
		return colIsFacilityID(v.Column)
	case clause.IN:
		return colIsFacilityID(v.Column)
	case clause.AndConditions:
		for _, x := range v.Exprs {
			if exprHasFacilityID(x) {
				return true
			}
		}
		return false
	case clause.OrConditions:
		for _, x := range v.Exprs {
			if exprHasFacilityID(x) {
				return true
			}
		}
		return false
	case clause.Expr:
		// Best-effort for raw expressions.
		return strings.Contains(strings.ToLower(v.SQL), "facility_id")
	default:
		return false
	}
}

func colIsFacilityID(col any) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, "facility_id")
	case clause.Column:
		return strings.EqualFold(c.Name, "facility_id")
	default:
		return false
	}
}
