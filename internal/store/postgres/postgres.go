// Package postgres implements store.Store on the kv_items table. Several
// logical tables (main, scoops, reports) share the physical table and are told
// apart by table_name.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"scoop_backend/internal/store"
)

type row struct {
	PK    string `db:"pk"`
	SK    string `db:"sk"`
	Attrs []byte `db:"attrs"`
}

type pgStore struct {
	db    *sqlx.DB
	table string
}

// New returns a store over the logical table.
func New(db *sqlx.DB, table string) store.Store {
	return &pgStore{db: db, table: table}
}

// classify maps driver errors onto store kinds. Connection, resource and
// serialization failures are transient; anything else is a plain error.
func classify(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: postgres %s: %w", store.ErrUnavailable, op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: postgres %s: %w", store.ErrUnavailable, op, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "40", "53", "57":
			return fmt.Errorf("%w: postgres %s: %w", store.ErrUnavailable, op, err)
		}
	}
	return fmt.Errorf("postgres %s: %w", op, err)
}

func (r row) item() (store.Item, error) {
	attrs := map[string]any{}
	if len(r.Attrs) > 0 {
		if err := json.Unmarshal(r.Attrs, &attrs); err != nil {
			return store.Item{}, fmt.Errorf("decode attrs %s/%s: %w", r.PK, r.SK, err)
		}
	}
	return store.Item{PK: r.PK, SK: r.SK, Attrs: attrs}, nil
}

func toItems(rows []row) ([]store.Item, error) {
	out := make([]store.Item, 0, len(rows))
	for _, r := range rows {
		it, err := r.item()
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

func (s *pgStore) Get(ctx context.Context, key store.Key, _ ...store.ReadOption) (store.Item, bool, error) {
	var r row
	err := s.db.GetContext(ctx, &r,
		`SELECT pk, sk, attrs FROM kv_items WHERE table_name = $1 AND pk = $2 AND sk = $3`,
		s.table, key.PK, key.SK)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Item{}, false, nil
	}
	if err != nil {
		return store.Item{}, false, classify("get", err)
	}
	it, err := r.item()
	if err != nil {
		return store.Item{}, false, err
	}
	return it, true, nil
}

func (s *pgStore) Put(ctx context.Context, item store.Item, cond *store.Condition) error {
	attrs, err := json.Marshal(item.Attrs)
	if err != nil {
		return fmt.Errorf("encode attrs %s: %w", item.Key(), err)
	}
	args := []any{s.table, item.PK, item.SK, attrs}

	var query string
	switch {
	case cond == nil:
		query = `INSERT INTO kv_items (table_name, pk, sk, attrs) VALUES ($1, $2, $3, $4)
			ON CONFLICT (table_name, pk, sk) DO UPDATE SET attrs = EXCLUDED.attrs`
	case cond.AttrName == "" && cond.MustNotExist:
		query = `INSERT INTO kv_items (table_name, pk, sk, attrs) VALUES ($1, $2, $3, $4)
			ON CONFLICT (table_name, pk, sk) DO NOTHING`
	case cond.AttrName == "":
		// a condition that can never hold on an existing or missing item
		return store.ErrConditionFailed
	default:
		want, err := json.Marshal(cond.AttrValue)
		if err != nil {
			return fmt.Errorf("encode condition value: %w", err)
		}
		args = append(args, cond.AttrName, string(want))
		if cond.MustNotExist {
			query = `INSERT INTO kv_items (table_name, pk, sk, attrs) VALUES ($1, $2, $3, $4)
				ON CONFLICT (table_name, pk, sk) DO UPDATE SET attrs = EXCLUDED.attrs
				WHERE kv_items.attrs -> $5::text = $6::jsonb`
		} else {
			query = `UPDATE kv_items SET attrs = $4
				WHERE table_name = $1 AND pk = $2 AND sk = $3 AND attrs -> $5::text = $6::jsonb`
		}
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return classify("put", err)
	}
	if cond != nil {
		n, err := res.RowsAffected()
		if err != nil {
			return classify("put", err)
		}
		if n == 0 {
			return store.ErrConditionFailed
		}
	}
	return nil
}

func (s *pgStore) Query(ctx context.Context, in store.QueryInput) (store.Page, error) {
	var (
		where = []string{"table_name = $1", "pk = $2"}
		args  = []any{s.table, in.PK}
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if in.SKPrefix != "" {
		add("starts_with(sk, $%d)", in.SKPrefix)
	}
	if in.SKFrom != "" {
		add(`sk COLLATE "C" >= $%d`, in.SKFrom)
	}
	if in.SKTo != "" {
		add(`sk COLLATE "C" <= $%d`, in.SKTo)
	}
	order := "ASC"
	if in.Descending {
		order = "DESC"
		if in.Cursor != "" {
			add(`sk COLLATE "C" < $%d`, in.Cursor)
		}
	} else if in.Cursor != "" {
		add(`sk COLLATE "C" > $%d`, in.Cursor)
	}

	query := fmt.Sprintf(`SELECT pk, sk, attrs FROM kv_items WHERE %s ORDER BY sk COLLATE "C" %s`,
		strings.Join(where, " AND "), order)
	if in.Limit > 0 {
		// one extra row tells us whether another page exists
		query += fmt.Sprintf(" LIMIT %d", in.Limit+1)
	}

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return store.Page{}, classify("query", err)
	}
	var page store.Page
	if in.Limit > 0 && len(rows) > in.Limit {
		rows = rows[:in.Limit]
		page.Next = rows[len(rows)-1].SK
	}
	items, err := toItems(rows)
	if err != nil {
		return store.Page{}, err
	}
	page.Items = items
	return page, nil
}

func (s *pgStore) BatchGet(ctx context.Context, keys []store.Key) ([]store.Item, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	pks := make([]string, len(keys))
	sks := make([]string, len(keys))
	for i, k := range keys {
		pks[i], sks[i] = k.PK, k.SK
	}
	var rows []row
	err := s.db.SelectContext(ctx, &rows,
		`SELECT DISTINCT i.pk, i.sk, i.attrs
		   FROM kv_items i
		   JOIN unnest($2::text[], $3::text[]) AS k(pk, sk) ON i.pk = k.pk AND i.sk = k.sk
		  WHERE i.table_name = $1`,
		s.table, pq.Array(pks), pq.Array(sks))
	if err != nil {
		return nil, classify("batch_get", err)
	}
	return toItems(rows)
}

func (s *pgStore) Delete(ctx context.Context, key store.Key) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_items WHERE table_name = $1 AND pk = $2 AND sk = $3`,
		s.table, key.PK, key.SK)
	if err != nil {
		return classify("delete", err)
	}
	return nil
}

func (s *pgStore) Scan(ctx context.Context, f store.Filter, limit int) ([]store.Item, error) {
	var (
		where = []string{"table_name = $1"}
		args  = []any{s.table}
	)
	add := func(clause string, v ...any) {
		args = append(args, v...)
		idx := make([]any, len(v))
		for i := range v {
			idx[i] = len(args) - len(v) + i + 1
		}
		where = append(where, fmt.Sprintf(clause, idx...))
	}
	if f.PKPrefix != "" {
		add("starts_with(pk, $%d)", f.PKPrefix)
	}
	if f.SKPrefix != "" {
		add("starts_with(sk, $%d)", f.SKPrefix)
	}
	if f.SKEquals != "" {
		add("sk = $%d", f.SKEquals)
	}
	for name, v := range f.Equals {
		want, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode filter value: %w", err)
		}
		add("attrs -> $%d::text = $%d::jsonb", name, string(want))
	}
	query := fmt.Sprintf(`SELECT pk, sk, attrs FROM kv_items WHERE %s ORDER BY pk, sk`, strings.Join(where, " AND "))
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	var rows []row
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, classify("scan", err)
	}
	return toItems(rows)
}

func (s *pgStore) Add(ctx context.Context, key store.Key, attr string, delta int64) (int64, error) {
	var n int64
	err := s.db.GetContext(ctx, &n,
		`INSERT INTO kv_items (table_name, pk, sk, attrs)
		 VALUES ($1, $2, $3, jsonb_build_object($4::text, $5::bigint))
		 ON CONFLICT (table_name, pk, sk) DO UPDATE
		    SET attrs = jsonb_set(kv_items.attrs, ARRAY[$4::text],
		                to_jsonb(COALESCE((kv_items.attrs ->> $4::text)::numeric, 0)::bigint + $5::bigint))
		 RETURNING (attrs ->> $4::text)::bigint`,
		s.table, key.PK, key.SK, attr, delta)
	if err != nil {
		return 0, classify("add", err)
	}
	return n, nil
}
