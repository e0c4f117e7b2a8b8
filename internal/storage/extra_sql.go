package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xwb1989/sqlparser"

	"github.com/canonica-labs/geometa/internal/adapters"
	"github.com/canonica-labs/geometa/internal/errors"
	"github.com/canonica-labs/geometa/migrations"
)

// SQLFile is a script of stored-function definitions. Statements are
// separated by $$ and DELIMITER lines are ignored, so the same file can be
// fed to the mysql client.
type SQLFile struct {
	Name    string
	Content string
}

// SQLFileFilter lets callers add to or rewrite the list of SQL files before
// they are installed or uninstalled.
type SQLFileFilter func(files []SQLFile) []SQLFile

// BundledSQLFiles returns the stored functions shipped with geometa, sorted
// by file name.
func BundledSQLFiles() ([]SQLFile, error) {
	entries, err := fs.ReadDir(migrations.FS, "sql")
	if err != nil {
		return nil, err
	}
	var files []SQLFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		content, err := fs.ReadFile(migrations.FS, path.Join("sql", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}
		files = append(files, SQLFile{Name: entry.Name(), Content: string(content)})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// LoadSQLFile reads an additional SQL file from disk.
func LoadSQLFile(p string) (SQLFile, error) {
	content, err := os.ReadFile(p)
	if err != nil {
		return SQLFile{}, fmt.Errorf("failed to read sql file %s: %w", p, err)
	}
	return SQLFile{Name: filepath.Base(p), Content: string(content)}, nil
}

// InstallStatements returns the statements of a SQL file in order. Every
// statement must be DDL.
func InstallStatements(content string) ([]string, error) {
	var stmts []string
	for _, piece := range strings.Split(content, "$$") {
		piece = strings.TrimSpace(piece)
		if piece == "" || strings.Contains(piece, "DELIMITER") {
			continue
		}
		if sqlparser.Preview(piece) != sqlparser.StmtDDL {
			return nil, fmt.Errorf("not a DDL statement: %.60q", piece)
		}
		stmts = append(stmts, piece)
	}
	return stmts, nil
}

// UninstallStatements returns only the DROP FUNCTION statements of a SQL
// file.
func UninstallStatements(content string) []string {
	var stmts []string
	for _, piece := range strings.Split(content, "$$") {
		piece = strings.TrimSpace(piece)
		if strings.Contains(piece, "DROP FUNCTION") {
			stmts = append(stmts, piece)
		}
	}
	return stmts
}

// FunctionInstaller installs and removes stored SQL functions. Only MySQL
// runs the bundled files; other engines provide equivalents natively.
type FunctionInstaller struct {
	adapter adapters.EngineAdapter
	files   []SQLFile
	logger  zerolog.Logger
}

// NewFunctionInstaller creates an installer for files, after filter has had
// a chance to change them. A nil filter keeps files as they are.
func NewFunctionInstaller(adapter adapters.EngineAdapter, files []SQLFile, filter SQLFileFilter, logger zerolog.Logger) *FunctionInstaller {
	if filter != nil {
		files = filter(files)
	}
	return &FunctionInstaller{adapter: adapter, files: files, logger: logger}
}

// Files returns the SQL files the installer runs.
func (f *FunctionInstaller) Files() []SQLFile {
	return f.files
}

// Install runs every statement of every file with engine error logging
// suppressed. It returns the number of statements that succeeded; a file that
// is not pure DDL is rejected as a whole.
func (f *FunctionInstaller) Install(ctx context.Context) (int, error) {
	if f.adapter.Dialect().Name != adapters.MySQL {
		f.logger.Debug().Str("engine", f.adapter.Name()).Msg("stored functions skipped")
		return 0, nil
	}

	prev := f.adapter.SuppressErrors(true)
	defer f.adapter.SuppressErrors(prev)

	ok := 0
	for _, file := range f.files {
		stmts, err := InstallStatements(file.Content)
		if err != nil {
			return ok, errors.NewMigrationFailed(file.Name, err)
		}
		for _, stmt := range stmts {
			if _, err := f.adapter.Exec(ctx, stmt); err != nil {
				f.logger.Warn().Err(err).Str("file", file.Name).Msg("stored function statement failed")
				continue
			}
			ok++
		}
	}
	return ok, nil
}

// Uninstall runs the DROP FUNCTION statements of every file.
func (f *FunctionInstaller) Uninstall(ctx context.Context) (int, error) {
	if f.adapter.Dialect().Name != adapters.MySQL {
		return 0, nil
	}

	prev := f.adapter.SuppressErrors(true)
	defer f.adapter.SuppressErrors(prev)

	ok := 0
	for _, file := range f.files {
		for _, stmt := range UninstallStatements(file.Content) {
			if _, err := f.adapter.Exec(ctx, stmt); err != nil {
				f.logger.Warn().Err(err).Str("file", file.Name).Msg("drop function failed")
				continue
			}
			ok++
		}
	}
	return ok, nil
}

// FunctionNames returns the names created by CREATE FUNCTION statements in
// files, for the capability catalog.
func FunctionNames(files []SQLFile) []string {
	var names []string
	for _, file := range files {
		for _, piece := range strings.Split(file.Content, "$$") {
			fields := strings.Fields(piece)
			for i := 0; i+2 < len(fields); i++ {
				if strings.EqualFold(fields[i], "CREATE") && strings.EqualFold(fields[i+1], "FUNCTION") {
					name := fields[i+2]
					if p := strings.IndexByte(name, '('); p >= 0 {
						name = name[:p]
					}
					names = append(names, strings.Trim(name, "`"))
					break
				}
			}
		}
	}
	return names
}
