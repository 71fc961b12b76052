// Package osexitmain defines an analyzer that reports direct process exits
// in main.main, where they would skip deferred logger syncs and shutdowns.
package osexitmain

import (
	"fmt"
	"go/ast"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// Analyzer is the osexitmain analyzer.
var Analyzer = &analysis.Analyzer{
	Name:     "osexitmain",
	Doc:      "reports direct os.Exit and syscall.Exit calls in main.main",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

// forbidden maps package paths to the exit functions reported in main.main.
var forbidden = map[string]string{
	"os":      "Exit",
	"syscall": "Exit",
}

func run(pass *analysis.Pass) (any, error) {
	if pass.Pkg == nil || pass.Pkg.Name() != "main" {
		return nil, nil
	}

	insp, ok := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)
	if !ok {
		return nil, fmt.Errorf("failed to assert type: expected *inspector.Inspector")
	}

	insp.Preorder([]ast.Node{(*ast.FuncDecl)(nil)}, func(n ast.Node) {
		fd, ok := n.(*ast.FuncDecl)
		if !ok || fd.Recv != nil || fd.Name == nil || fd.Name.Name != "main" || fd.Body == nil {
			return
		}

		ast.Inspect(fd.Body, func(nn ast.Node) bool {
			switch x := nn.(type) {
			case *ast.FuncLit:
				// deferred or spawned closures run outside main's own flow
				return false
			case *ast.CallExpr:
				if fn := exitFunc(pass, x); fn != nil {
					pass.Reportf(x.Pos(), "direct call to %s.%s in main.main; return from main instead", fn.Pkg().Name(), fn.Name())
				}
			}
			return true
		})
	})

	return nil, nil
}

// exitFunc returns the called function when call targets a forbidden exit.
func exitFunc(pass *analysis.Pass, call *ast.CallExpr) *types.Func {
	if call == nil || pass.TypesInfo == nil {
		return nil
	}
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || sel.Sel == nil {
		return nil
	}
	fn, ok := pass.TypesInfo.Uses[sel.Sel].(*types.Func)
	if !ok || fn.Pkg() == nil {
		return nil
	}
	if name, ok := forbidden[fn.Pkg().Path()]; ok && name == fn.Name() {
		return fn
	}
	return nil
}
