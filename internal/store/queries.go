package store

import (
	"github.com/Masterminds/squirrel"

	"github.com/codeindex-dev/codeindex/internal/cerr"
)

// sq is the squirrel builder configured for sqlite's "?" placeholders,
// generalizing the teacher's query_helpers.go builders (LoadInterfacesWithMethods,
// LoadStructsWithMethods) from Go-type joins to the spec's symbol/call
// navigation queries.
var sq = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)

// SymbolMatch is one symbol row joined with its owning file's path.
type SymbolMatch struct {
	FilePath  string
	Name      string
	Kind      string
	StartLine int
	EndLine   int
	Signature string
}

// FindDef returns every symbol definition named name, across all files,
// implementing the tool-server's find_def operation.
func (s *Store) FindDef(name string) ([]SymbolMatch, error) {
	query := sq.Select("f.path", "sy.name", "sy.kind", "sy.start_line", "sy.end_line", "sy.signature").
		From("symbols sy").
		Join("files f ON f.id = sy.file_id").
		Where(squirrel.Eq{"sy.name": name}).
		OrderBy("f.path", "sy.start_line")

	rows, err := query.RunWith(s.db).Query()
	if err != nil {
		return nil, cerr.New("store.FindDef", cerr.StoreCorrupt, err)
	}
	defer rows.Close()
	return scanSymbolMatches(rows)
}

// CallMatch is one call-site row joined with its owning file's path.
type CallMatch struct {
	FilePath   string
	StartLine  int
	EndLine    int
	CalleeName string
	Kind       string
	Receiver   string
}

// FindRefs returns every call site whose callee_name equals name,
// implementing find_refs.
func (s *Store) FindRefs(name string) ([]CallMatch, error) {
	return s.queryCalls(sq.Select("f.path", "c.caller_start_line", "c.caller_end_line", "c.callee_name", "c.kind", "c.receiver").
		From("calls c").
		Join("files f ON f.id = c.file_id").
		Where(squirrel.Eq{"c.callee_name": name}).
		OrderBy("f.path", "c.caller_start_line"))
}

// Callers returns every call site whose callee_name equals calleeName —
// i.e. the caller side of the call graph for that symbol — implementing
// the callers operation. Depth > 1 widens the search
// to calls whose callee itself has callers, applied iteratively by the
// caller of this method (the store only resolves one hop per call, per
// spec §3's "resolution to a Symbol by name happens at query time").
func (s *Store) Callers(calleeName string) ([]CallMatch, error) {
	return s.queryCalls(sq.Select("f.path", "c.caller_start_line", "c.caller_end_line", "c.callee_name", "c.kind", "c.receiver").
		From("calls c").
		Join("files f ON f.id = c.file_id").
		Where(squirrel.Eq{"c.callee_name": calleeName}).
		OrderBy("f.path", "c.caller_start_line"))
}

// Callees returns the call sites enclosed within a symbol's line span,
// implementing the callees operation (what does this symbol call).
func (s *Store) Callees(filePath string, startLine, endLine int) ([]CallMatch, error) {
	return s.queryCalls(sq.Select("f.path", "c.caller_start_line", "c.caller_end_line", "c.callee_name", "c.kind", "c.receiver").
		From("calls c").
		Join("files f ON f.id = c.file_id").
		Where(squirrel.Eq{"f.path": filePath}).
		Where(squirrel.GtOrEq{"c.caller_start_line": startLine}).
		Where(squirrel.LtOrEq{"c.caller_end_line": endLine}).
		OrderBy("c.caller_start_line"))
}

// SymbolsInFile returns every symbol defined in path, ordered by start
// line, implementing the tool-server's symbols operation.
func (s *Store) SymbolsInFile(path string) ([]SymbolMatch, error) {
	query := sq.Select("f.path", "sy.name", "sy.kind", "sy.start_line", "sy.end_line", "sy.signature").
		From("symbols sy").
		Join("files f ON f.id = sy.file_id").
		Where(squirrel.Eq{"f.path": path}).
		OrderBy("sy.start_line")

	rows, err := query.RunWith(s.db).Query()
	if err != nil {
		return nil, cerr.New("store.SymbolsInFile", cerr.StoreCorrupt, err)
	}
	defer rows.Close()
	return scanSymbolMatches(rows)
}

func (s *Store) queryCalls(query squirrel.SelectBuilder) ([]CallMatch, error) {
	rows, err := query.RunWith(s.db).Query()
	if err != nil {
		return nil, cerr.New("store.queryCalls", cerr.StoreCorrupt, err)
	}
	defer rows.Close()

	var out []CallMatch
	for rows.Next() {
		var m CallMatch
		if err := rows.Scan(&m.FilePath, &m.StartLine, &m.EndLine, &m.CalleeName, &m.Kind, &m.Receiver); err != nil {
			return nil, cerr.New("store.queryCalls", cerr.StoreCorrupt, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanSymbolMatches(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]SymbolMatch, error) {
	var out []SymbolMatch
	for rows.Next() {
		var m SymbolMatch
		if err := rows.Scan(&m.FilePath, &m.Name, &m.Kind, &m.StartLine, &m.EndLine, &m.Signature); err != nil {
			return nil, cerr.New("store.scanSymbolMatches", cerr.StoreCorrupt, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
