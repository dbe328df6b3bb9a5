// Package hostdb is a DOMAIN STACK bridge: it exposes SQL database access to
// TinyScript scripts as native functions, following the reference
// implementation's connection-pool-by-handle design (db_manager.go) but
// addressed through the VM's native-call mechanism instead of a bespoke
// opcode, and returning TinyScript values instead of Go maps.
package hostdb

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"tinyscript/internal/value"
)

// Bridge owns a pool of open connections, keyed by a host-generated handle
// string scripts pass back into subsequent calls. It is not safe to share a
// single Bridge across concurrent VM runs without external synchronization
// beyond what's already provided by its own mutex over the connection map.
type Bridge struct {
	mu    sync.Mutex
	conns map[string]*sql.DB
}

// NewBridge returns an empty connection pool.
func NewBridge() *Bridge {
	return &Bridge{conns: make(map[string]*sql.DB)}
}

// Register installs this bridge's native functions onto vm under the
// "Db.*" qualified names a script reaches via the flattened "Db_open" etc.
// member-access convention (see DESIGN.md's native-dispatch decision).
func (b *Bridge) Register(register func(name string, fn func([]value.Value) (value.Value, error))) {
	register("Db.open", b.open)
	register("Db.exec", b.exec)
	register("Db.query", b.query)
	register("Db.close", b.close)
}

// driverFor maps TinyScript's database-type string onto the registered
// database/sql driver name, mirroring db_manager.go's Connect switch.
func driverFor(dbType string) (string, error) {
	switch dbType {
	case "sqlite", "sqlite3":
		return "sqlite3", nil
	case "postgres", "postgresql":
		return "postgres", nil
	case "mysql":
		return "mysql", nil
	case "sqlserver", "mssql":
		return "sqlserver", nil
	default:
		return "", fmt.Errorf("unsupported database type: %s", dbType)
	}
}

// open implements Db.open(type, dsn) -> handle.
func (b *Bridge) open(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.Value{}, fmt.Errorf("Db.open expects (type, dsn)")
	}
	dbType, ok := args[0].AsString()
	if !ok {
		return value.Value{}, fmt.Errorf("Db.open: type must be a string")
	}
	dsn, ok := args[1].AsString()
	if !ok {
		return value.Value{}, fmt.Errorf("Db.open: dsn must be a string")
	}

	driver, err := driverFor(dbType)
	if err != nil {
		return value.Value{}, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return value.Value{}, fmt.Errorf("failed to open %s connection: %w", dbType, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return value.Value{}, fmt.Errorf("failed to reach %s database: %w", dbType, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	handle := uuid.NewString()
	b.mu.Lock()
	b.conns[handle] = db
	b.mu.Unlock()
	return value.String(handle), nil
}

func (b *Bridge) get(handle string) (*sql.DB, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	db, ok := b.conns[handle]
	if !ok {
		return nil, fmt.Errorf("unknown database handle: %s", handle)
	}
	return db, nil
}

// exec implements Db.exec(handle, query, ...params) -> rows affected.
func (b *Bridge) exec(args []value.Value) (value.Value, error) {
	if len(args) < 2 {
		return value.Value{}, fmt.Errorf("Db.exec expects (handle, query, ...params)")
	}
	handle, ok := args[0].AsString()
	if !ok {
		return value.Value{}, fmt.Errorf("Db.exec: handle must be a string")
	}
	query, ok := args[1].AsString()
	if !ok {
		return value.Value{}, fmt.Errorf("Db.exec: query must be a string")
	}
	db, err := b.get(handle)
	if err != nil {
		return value.Value{}, err
	}

	params := toSQLArgs(args[2:])
	result, err := db.Exec(query, params...)
	if err != nil {
		return value.Value{}, fmt.Errorf("exec failed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return value.Value{}, err
	}
	return value.Integer(int32(affected)), nil
}

// query implements Db.query(handle, query, ...params) -> Array of Dictionary,
// one entry per row, column name to column value.
func (b *Bridge) query(args []value.Value) (value.Value, error) {
	if len(args) < 2 {
		return value.Value{}, fmt.Errorf("Db.query expects (handle, query, ...params)")
	}
	handle, ok := args[0].AsString()
	if !ok {
		return value.Value{}, fmt.Errorf("Db.query: handle must be a string")
	}
	query, ok := args[1].AsString()
	if !ok {
		return value.Value{}, fmt.Errorf("Db.query: query must be a string")
	}
	db, err := b.get(handle)
	if err != nil {
		return value.Value{}, err
	}

	rows, err := db.Query(query, toSQLArgs(args[2:])...)
	if err != nil {
		return value.Value{}, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return value.Value{}, err
	}

	var out []value.Value
	raw := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return value.Value{}, err
		}
		entries := make(map[string]value.Value, len(columns))
		for i, col := range columns {
			entries[col] = fromSQLValue(raw[i])
		}
		out = append(out, value.NewDictionary(entries))
	}
	if err := rows.Err(); err != nil {
		return value.Value{}, err
	}
	return value.NewArray(out), nil
}

// close implements Db.close(handle).
func (b *Bridge) close(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, fmt.Errorf("Db.close expects (handle)")
	}
	handle, ok := args[0].AsString()
	if !ok {
		return value.Value{}, fmt.Errorf("Db.close: handle must be a string")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	db, ok := b.conns[handle]
	if !ok {
		return value.Value{}, fmt.Errorf("unknown database handle: %s", handle)
	}
	delete(b.conns, handle)
	if err := db.Close(); err != nil {
		return value.Value{}, err
	}
	return value.Null, nil
}

// CloseAll closes every open connection, for use at host shutdown.
func (b *Bridge) CloseAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for handle, db := range b.conns {
		db.Close()
		delete(b.conns, handle)
	}
}

func toSQLArgs(vs []value.Value) []interface{} {
	out := make([]interface{}, len(vs))
	for i, v := range vs {
		switch v.Kind() {
		case value.KindInteger:
			n, _ := v.AsInteger()
			out[i] = n
		case value.KindFloat:
			f, _ := v.AsFloat()
			out[i] = f
		case value.KindBool:
			b, _ := v.AsBool()
			out[i] = b
		case value.KindString:
			s, _ := v.AsString()
			out[i] = s
		case value.KindNull:
			out[i] = nil
		default:
			out[i] = v.String()
		}
	}
	return out
}

func fromSQLValue(v interface{}) value.Value {
	switch t := v.(type) {
	case nil:
		return value.Null
	case []byte:
		return value.String(string(t))
	case string:
		return value.String(t)
	case int64:
		return value.Integer(int32(t))
	case float64:
		return value.Float(float32(t))
	case bool:
		return value.Bool(t)
	case time.Time:
		return value.String(t.Format(time.RFC3339))
	default:
		return value.String(fmt.Sprintf("%v", t))
	}
}
