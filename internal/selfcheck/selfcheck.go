// Package selfcheck is a quick sanity scan over the repo's own Go sources,
// reporting per file whether it handles errors, returns values, writes the
// system log and reads configuration.
package selfcheck

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/multierr"

	"github.com/hamed0406/homecheck/internal/repo"
)

const Completed = "All checks completed"

type FileReport struct {
	Path            string
	HandlesErrors   bool
	Returns         bool
	WritesSystemLog bool
	UsesConfig      bool
	Err             error
}

func (r FileReport) String() string {
	if r.Err != nil {
		return fmt.Sprintf("ERROR reading %s: %v", r.Path, r.Err)
	}
	return fmt.Sprintf("FILE %s: error_handling=%t, return=%t, logging=%t, config_use=%t",
		r.Path, r.HandlesErrors, r.Returns, r.WritesSystemLog, r.UsesConfig)
}

// Scan inspects every .go file under root. Directories the go tool ignores
// (leading "." or "_", testdata, vendor) are skipped. Files that do not
// parse are reported with Err set.
func Scan(root string) ([]FileReport, error) {
	var out []FileReport
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "testdata" || name == "vendor") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) == ".go" {
			out = append(out, inspect(path))
		}
		return nil
	})
	return out, err
}

// Run scans root and writes one system log line per file followed by
// Completed.
func Run(root string, sink repo.AuditSink) ([]FileReport, error) {
	reports, scanErr := Scan(root)
	var err error
	for _, r := range reports {
		err = multierr.Append(err, sink.AppendSystemLog(r.String()))
	}
	if scanErr != nil {
		err = multierr.Append(err, sink.AppendSystemLog(fmt.Sprintf("ERROR scanning %s: %v", root, scanErr)))
	}
	err = multierr.Append(err, sink.AppendSystemLog(Completed))
	return reports, multierr.Append(scanErr, err)
}

func inspect(path string) FileReport {
	r := FileReport{Path: path}
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, path, nil, parser.SkipObjectResolution)
	if err != nil {
		r.Err = err
		return r
	}

	for _, imp := range f.Imports {
		p, _ := strconv.Unquote(imp.Path.Value)
		if strings.HasSuffix(p, "/internal/config") || p == "github.com/joho/godotenv" {
			r.UsesConfig = true
		}
	}

	ast.Inspect(f, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.ReturnStmt:
			if len(n.Results) > 0 {
				r.Returns = true
			}
		case *ast.IfStmt:
			if isErrCheck(n.Cond) {
				r.HandlesErrors = true
			}
		case *ast.SelectorExpr:
			switch n.Sel.Name {
			case "AppendSystemLog":
				r.WritesSystemLog = true
			case "Getenv", "LookupEnv":
				r.UsesConfig = true
			}
		case *ast.BasicLit:
			if n.Kind == token.STRING {
				s := n.Value
				if strings.Contains(s, "system.log") {
					r.WritesSystemLog = true
				}
				if strings.Contains(s, "config.json") || strings.Contains(s, "secrets.json") {
					r.UsesConfig = true
				}
			}
		}
		return true
	})
	return r
}

// isErrCheck matches "err != nil" (either operand order, any identifier
// named err or ending in Err).
func isErrCheck(cond ast.Expr) bool {
	b, ok := cond.(*ast.BinaryExpr)
	if !ok {
		return false
	}
	if b.Op == token.LAND || b.Op == token.LOR {
		return isErrCheck(b.X) || isErrCheck(b.Y)
	}
	if b.Op != token.NEQ {
		return false
	}
	return (isErrIdent(b.X) && isNil(b.Y)) || (isNil(b.X) && isErrIdent(b.Y))
}

func isErrIdent(e ast.Expr) bool {
	id, ok := e.(*ast.Ident)
	return ok && (id.Name == "err" || strings.HasSuffix(id.Name, "Err"))
}

func isNil(e ast.Expr) bool {
	id, ok := e.(*ast.Ident)
	return ok && id.Name == "nil"
}
