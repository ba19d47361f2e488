package datarecording

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"reflect"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// ErrUnmappedTable is returned when a table is queried before MapTable.
var ErrUnmappedTable = errors.New("table is not mapped")

// A Selection narrows the rows of a query. The zero Selection selects every
// row in storage order.
type Selection struct {
	// Where is a condition without the WHERE keyword, such as "TraceID = ?".
	Where string

	// Args fill the placeholders of Where.
	Args []any

	// OrderBy lists the sort columns without the ORDER BY keywords.
	OrderBy string

	// Limit caps the number of rows; zero means no cap. Offset only applies
	// with a Limit.
	Limit  int
	Offset int
}

func (s Selection) clause() string {
	c := ""

	if s.Where != "" {
		c += " WHERE " + s.Where
	}

	if s.OrderBy != "" {
		c += " ORDER BY " + s.OrderBy
	}

	if s.Limit > 0 {
		c += fmt.Sprintf(" LIMIT %d", s.Limit)

		if s.Offset > 0 {
			c += fmt.Sprintf(" OFFSET %d", s.Offset)
		}
	}

	return c
}

// DataReader reads back the tables written by a DataRecorder.
type DataReader interface {
	// MapTable sets the struct rows of a table are scanned into. Columns
	// without a field of the same name are dropped.
	MapTable(tableName string, sampleEntry any)

	// Tables lists the tables stored in the database.
	Tables(ctx context.Context) ([]string, error)

	// Query returns pointers to the mapped struct, one per selected row.
	Query(ctx context.Context, tableName string, sel Selection) ([]any, error)

	// Count returns the number of rows the selection matches, ignoring its
	// order, limit and offset.
	Count(ctx context.Context, tableName string, sel Selection) (int, error)

	// Close closes the database.
	Close() error
}

// NewReader opens the database that New(path) recorded into.
func NewReader(path string) (DataReader, error) {
	filename := path + ".sqlite3"

	if _, err := os.Stat(filename); err != nil {
		return nil, errors.Wrapf(err, "opening recording %s", filename)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, errors.Wrapf(err, "opening recording %s", filename)
	}

	return NewReaderWithDB(db), nil
}

// NewReaderWithDB creates a DataReader over an open database.
func NewReaderWithDB(db *sql.DB) DataReader {
	return &sqliteReader{
		DB:      db,
		typeMap: make(map[string]reflect.Type),
	}
}

type sqliteReader struct {
	*sql.DB

	lock    sync.RWMutex
	typeMap map[string]reflect.Type
}

func (r *sqliteReader) MapTable(tableName string, sampleEntry any) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.typeMap[tableName] = reflect.TypeOf(sampleEntry)
}

func (r *sqliteReader) Tables(ctx context.Context) ([]string, error) {
	rows, err := r.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := []string{}

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}

		tables = append(tables, name)
	}

	sort.Strings(tables)

	return tables, rows.Err()
}

func (r *sqliteReader) structType(tableName string) (reflect.Type, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	t, ok := r.typeMap[tableName]
	if !ok {
		return nil, errors.Wrap(ErrUnmappedTable, tableName)
	}

	return t, nil
}

func (r *sqliteReader) Query(
	ctx context.Context,
	tableName string,
	sel Selection,
) ([]any, error) {
	structType, err := r.structType(tableName)
	if err != nil {
		return nil, err
	}

	rows, err := r.QueryContext(ctx,
		"SELECT * FROM "+tableName+sel.clause(), sel.Args...)
	if err != nil {
		return nil, errors.Wrapf(err, "querying %s", tableName)
	}
	defer rows.Close()

	return scanRows(rows, structType)
}

func (r *sqliteReader) Count(
	ctx context.Context,
	tableName string,
	sel Selection,
) (int, error) {
	where := Selection{Where: sel.Where}

	var n int

	err := r.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+tableName+where.clause(), sel.Args...).Scan(&n)
	if err != nil {
		return 0, errors.Wrapf(err, "counting %s", tableName)
	}

	return n, nil
}

func scanRows(rows *sql.Rows, structType reflect.Type) ([]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	fields := make(map[string]int, structType.NumField())
	for i := 0; i < structType.NumField(); i++ {
		fields[structType.Field(i).Name] = i
	}

	results := []any{}

	for rows.Next() {
		entry := reflect.New(structType)
		targets := make([]any, len(columns))

		for i, column := range columns {
			if idx, ok := fields[column]; ok {
				targets[i] = entry.Elem().Field(idx).Addr().Interface()
				continue
			}

			var dropped any
			targets[i] = &dropped
		}

		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}

		results = append(results, entry.Interface())
	}

	return results, rows.Err()
}
