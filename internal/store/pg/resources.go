package pg

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/LuisFaxas/faxas-property-sub000/internal/auth"
	"github.com/LuisFaxas/faxas-property-sub000/internal/ids"
	"github.com/LuisFaxas/faxas-property-sub000/internal/scoped"
)

// resourceSchema fixes the writable columns per resource table. Filters and
// payload fields outside the whitelist are rejected before any SQL is built,
// so request input can never name a column.
type resourceSchema struct {
	table    string
	writable []string
}

var resourceSchemas = map[string]resourceSchema{
	"tasks": {
		table:    "tasks",
		writable: []string{"title", "status", "assignee", "due_date", "notes"},
	},
	"schedule_events": {
		table:    "schedule_events",
		writable: []string{"title", "status", "starts_at", "ends_at", "location"},
	},
	"budget_items": {
		table:    "budget_items",
		writable: []string{"name", "category", "estimated_total", "committed_total", "paid_to_date", "variance"},
	},
	"procurement_items": {
		table:    "procurement_items",
		writable: []string{"name", "vendor", "status", "quantity", "po_value", "total_cost", "unit_cost"},
	},
	"contacts": {
		table:    "contacts",
		writable: []string{"name", "company", "email", "phone", "trade"},
	},
	"proposals": {
		table:    "proposals",
		writable: []string{"title", "status", "amount", "margin"},
	},
	"change_orders": {
		table:    "change_orders",
		writable: []string{"title", "status", "reason", "amount", "margin"},
	},
}

// Collection implements scoped.Collection for one resource table.
type Collection struct {
	store  *Store
	kind   string
	schema resourceSchema
}

// Collections returns one collection per resource table.
func (s *Store) Collections() []scoped.Collection {
	out := make([]scoped.Collection, 0, len(resourceSchemas))
	for kind := range resourceSchemas {
		col, _ := s.Collection(kind)
		out = append(out, col)
	}
	return out
}

func (s *Store) Collection(kind string) (*Collection, error) {
	schema, ok := resourceSchemas[kind]
	if !ok {
		return nil, fmt.Errorf("pg: unknown resource kind %q", kind)
	}
	return &Collection{store: s, kind: kind, schema: schema}, nil
}

func (c *Collection) Kind() string { return c.kind }

func (c *Collection) filterable(col string) bool {
	if col == "id" || col == scoped.TenantField {
		return true
	}
	for _, w := range c.schema.writable {
		if w == col {
			return true
		}
	}
	return false
}

func (c *Collection) whereClause(filter scoped.Filter) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}
	cols := make([]string, 0, len(filter))
	for col := range filter {
		if !c.filterable(col) {
			return "", nil, fmt.Errorf("%w: cannot filter %s by %q", auth.ErrInvalidInput, c.kind, col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)
	clauses := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		clauses[i] = fmt.Sprintf("%s = $%d", col, i+1)
		args[i] = filter[col]
	}
	return " where " + strings.Join(clauses, " and "), args, nil
}

func (c *Collection) FindMany(ctx context.Context, filter scoped.Filter) ([]scoped.Record, error) {
	where, args, err := c.whereClause(filter)
	if err != nil {
		return nil, err
	}
	rows, err := c.store.db.QueryContext(ctx,
		fmt.Sprintf(`select * from %s%s order by id`, c.schema.table, where), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []scoped.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Collection) Count(ctx context.Context, filter scoped.Filter) (int64, error) {
	where, args, err := c.whereClause(filter)
	if err != nil {
		return 0, err
	}
	var n int64
	err = c.store.db.QueryRowContext(ctx,
		fmt.Sprintf(`select count(*) from %s%s`, c.schema.table, where), args...).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (c *Collection) Create(ctx context.Context, rec scoped.Record) (scoped.Record, error) {
	cols := []string{"id", scoped.TenantField}
	args := []any{ids.New(), rec[scoped.TenantField]}
	for _, col := range c.schema.writable {
		if v, ok := rec[col]; ok {
			cols = append(cols, col)
			args = append(args, v)
		}
	}
	for field := range rec {
		if !c.filterable(field) {
			return nil, fmt.Errorf("%w: unknown %s field %q", auth.ErrInvalidInput, c.kind, field)
		}
	}

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	rows, err := c.store.db.QueryContext(ctx, fmt.Sprintf(`
		insert into %s (%s)
		values (%s)
		returning *
	`, c.schema.table, strings.Join(cols, ", "), strings.Join(placeholders, ", ")), args...)
	if err != nil {
		return nil, translateResourceErr(err)
	}
	defer rows.Close()
	return scanSingle(rows)
}

func (c *Collection) FindUnique(ctx context.Context, id string) (scoped.Record, error) {
	rows, err := c.store.db.QueryContext(ctx,
		fmt.Sprintf(`select * from %s where id = $1`, c.schema.table), id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSingle(rows)
}

func (c *Collection) Update(ctx context.Context, id string, changes scoped.Record) (scoped.Record, error) {
	var (
		sets []string
		args []any
		idx  = 1
	)
	cols := make([]string, 0, len(changes))
	for col := range changes {
		if !c.filterable(col) || col == "id" || col == scoped.TenantField {
			return nil, fmt.Errorf("%w: cannot update %s field %q", auth.ErrInvalidInput, c.kind, col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, changes[col])
		idx++
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id)

	rows, err := c.store.db.QueryContext(ctx, fmt.Sprintf(`
		update %s set %s where id = $%d returning *
	`, c.schema.table, strings.Join(sets, ", "), idx), args...)
	if err != nil {
		return nil, translateResourceErr(err)
	}
	defer rows.Close()
	return scanSingle(rows)
}

func (c *Collection) Delete(ctx context.Context, id string) error {
	res, err := c.store.db.ExecContext(ctx,
		fmt.Sprintf(`delete from %s where id = $1`, c.schema.table), id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return scoped.ErrNotFound
	}
	return nil
}

// scanRecord reads the current row into a map keyed by column name.
func scanRecord(rows *sql.Rows) (scoped.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	rec := make(scoped.Record, len(cols))
	for i, col := range cols {
		if b, ok := vals[i].([]byte); ok {
			rec[col] = string(b)
			continue
		}
		rec[col] = vals[i]
	}
	return rec, nil
}

func scanSingle(rows *sql.Rows) (scoped.Record, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, scoped.ErrNotFound
	}
	return scanRecord(rows)
}

func translateResourceErr(err error) error {
	if pgErr, ok := maybePgError(err); ok {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return auth.ErrConflict
		case pgErrForeignKeyViolation:
			return scoped.ErrNotFound
		}
	}
	return err
}
