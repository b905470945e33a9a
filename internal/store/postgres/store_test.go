package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

type execCall struct {
	sql  string
	args []any
}

// fakeDB records Exec calls and serves one canned row.
type fakeDB struct {
	execs    []execCall
	execErr  error
	row      fakeRow
	rows     *fakeRows
	queryErr error
	queries  []execCall
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql, args})
	return pgconn.NewCommandTag("INSERT 0 1"), f.execErr
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.queries = append(f.queries, execCall{sql, args})
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.rows, nil
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return f.row
}

type fakeRow struct {
	raw []byte
	ts  time.Time
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*[]byte) = r.raw
	*dest[1].(*time.Time) = r.ts
	return nil
}

// fakeRows serves audit_log rows as (id, event, detail, created_at).
type fakeRows struct {
	data   [][]any
	i      int
	closed bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.data[r.i-1], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.closed || r.i >= len(r.data) {
		r.closed = true
		return false
	}
	r.i++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.i-1]
	*dest[0].(*int64) = row[0].(int64)
	*dest[1].(*string) = row[1].(string)
	*dest[2].(*[]byte) = row[2].([]byte)
	*dest[3].(*time.Time) = row[3].(time.Time)
	return nil
}

func TestSettingsStore_LoadMissing(t *testing.T) {
	s := &SettingsStore{db: &fakeDB{row: fakeRow{err: pgx.ErrNoRows}}}
	_, err := s.LoadSettings(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSettingsStore_LoadError(t *testing.T) {
	s := &SettingsStore{db: &fakeDB{row: fakeRow{err: errors.New("conn reset")}}}
	_, err := s.LoadSettings(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestSettingsStore_SaveThenLoad(t *testing.T) {
	db := &fakeDB{}
	s := &SettingsStore{db: db}
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	in := domain.Settings{
		Symbols:          []string{"BTC/USDT", "ETH/USDT"},
		MinSpreadBps:     25,
		SlippageBps:      5,
		Mode:             domain.TradeModePaper,
		PaperNotionalUSD: 200,
		PollInterval:     2 * time.Second,
		Running:          true,
		UpdatedAt:        ts,
	}

	require.NoError(t, s.SaveSettings(context.Background(), in))
	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0].sql, "ON CONFLICT (id)")
	raw := db.execs[0].args[0].([]byte)
	assert.True(t, json.Valid(raw))

	db.row = fakeRow{raw: raw, ts: ts}
	out, err := s.LoadSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestAuditStore_Log(t *testing.T) {
	db := &fakeDB{}
	s := &AuditStore{db: db}

	require.NoError(t, s.Log(context.Background(), "symbol_added", map[string]any{"symbol": "SOL/USDT"}))
	require.Len(t, db.execs, 1)
	assert.Equal(t, "symbol_added", db.execs[0].args[0])
	assert.JSONEq(t, `{"symbol":"SOL/USDT"}`, string(db.execs[0].args[1].([]byte)))

	db.execErr = errors.New("boom")
	assert.ErrorContains(t, s.Log(context.Background(), "x", nil), "boom")
}

func TestAuditStore_Recent(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	db := &fakeDB{rows: &fakeRows{data: [][]any{
		{int64(2), "mode_changed", []byte(`{"mode":"live"}`), ts},
		{int64(1), "scanner_started", []byte(nil), ts.Add(-time.Minute)},
	}}}
	s := &AuditStore{db: db}

	got, err := s.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.AuditEntry{ID: 2, Event: "mode_changed", Detail: map[string]any{"mode": "live"}, CreatedAt: ts}, got[0])
	assert.Nil(t, got[1].Detail)
	assert.Equal(t, []any{10}, db.queries[0].args)
	assert.True(t, db.rows.closed)

	db.queryErr = errors.New("down")
	_, err = s.Recent(context.Background(), 10)
	assert.ErrorContains(t, err, "down")
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/arb?sslmode=disable",
		DSN(ClientConfig{Host: "db", User: "u", Password: "p", Database: "arb"}))
	assert.Equal(t, "postgres://explicit", DSN(ClientConfig{DSN: "postgres://explicit", Host: "ignored"}))
}

func TestMigrationsEmbedded(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"001_init.sql"}, names)

	data, err := migrationsFS.ReadFile("migrations/001_init.sql")
	require.NoError(t, err)
	assert.Contains(t, string(data), "scanner_settings")
	assert.Contains(t, string(data), "audit_log")
}
