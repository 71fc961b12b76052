// Command staticlint runs the vet passes, the SA staticcheck family, ST1000
// and the local analyzers over the module.
//
// Analyzers named in STATICLINT_DISABLE (comma separated) are skipped.
package main

import (
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/multichecker"

	"golang.org/x/tools/go/analysis/passes/assign"
	"golang.org/x/tools/go/analysis/passes/atomic"
	"golang.org/x/tools/go/analysis/passes/bools"
	"golang.org/x/tools/go/analysis/passes/buildtag"
	"golang.org/x/tools/go/analysis/passes/cgocall"
	"golang.org/x/tools/go/analysis/passes/composite"
	"golang.org/x/tools/go/analysis/passes/copylock"
	"golang.org/x/tools/go/analysis/passes/errorsas"
	"golang.org/x/tools/go/analysis/passes/httpresponse"
	"golang.org/x/tools/go/analysis/passes/loopclosure"
	"golang.org/x/tools/go/analysis/passes/lostcancel"
	"golang.org/x/tools/go/analysis/passes/nilfunc"
	"golang.org/x/tools/go/analysis/passes/printf"
	"golang.org/x/tools/go/analysis/passes/shift"
	"golang.org/x/tools/go/analysis/passes/stdmethods"
	"golang.org/x/tools/go/analysis/passes/structtag"
	"golang.org/x/tools/go/analysis/passes/tests"
	"golang.org/x/tools/go/analysis/passes/unmarshal"
	"golang.org/x/tools/go/analysis/passes/unreachable"
	"golang.org/x/tools/go/analysis/passes/unsafeptr"
	"golang.org/x/tools/go/analysis/passes/unusedresult"

	"honnef.co/go/tools/analysis/lint"
	"honnef.co/go/tools/staticcheck"
	"honnef.co/go/tools/stylecheck"

	"github.com/gostaticanalysis/forcetypeassert"
	"github.com/gostaticanalysis/nilerr"

	"github.com/vshulcz/Deltaline/cmd/staticlint/osexitmain"
	"github.com/vshulcz/Deltaline/internal/misc"
)

// vetPasses lists the go vet analyzers run by default.
var vetPasses = []*analysis.Analyzer{
	assign.Analyzer, atomic.Analyzer, bools.Analyzer, buildtag.Analyzer,
	cgocall.Analyzer, composite.Analyzer, copylock.Analyzer, errorsas.Analyzer,
	httpresponse.Analyzer, loopclosure.Analyzer, lostcancel.Analyzer, nilfunc.Analyzer,
	printf.Analyzer, shift.Analyzer, stdmethods.Analyzer, structtag.Analyzer,
	tests.Analyzer, unmarshal.Analyzer, unreachable.Analyzer, unsafeptr.Analyzer,
	unusedresult.Analyzer,
}

// selectAnalyzers returns the analyzers from set whose name starts with one
// of prefixes or equals one of them.
func selectAnalyzers(set []*lint.Analyzer, prefixes ...string) []*analysis.Analyzer {
	var out []*analysis.Analyzer
	for _, la := range set {
		if la == nil || la.Analyzer == nil {
			continue
		}
		for _, p := range prefixes {
			if strings.HasPrefix(la.Analyzer.Name, p) {
				out = append(out, la.Analyzer)
				break
			}
		}
	}
	return out
}

func main() {
	all := append([]*analysis.Analyzer{}, vetPasses...)
	all = append(all, selectAnalyzers(staticcheck.Analyzers, "SA")...)
	all = append(all, selectAnalyzers(stylecheck.Analyzers, "ST1000")...)
	all = append(all, nilerr.Analyzer, forcetypeassert.Analyzer, osexitmain.Analyzer)

	multichecker.Main(filterAnalyzers(all, misc.GetList("STATICLINT_DISABLE", nil))...)
}

// filterAnalyzers drops nil entries, repeated names and every name in disabled.
func filterAnalyzers(analyzers []*analysis.Analyzer, disabled []string) []*analysis.Analyzer {
	skip := make(map[string]bool, len(disabled))
	for _, name := range disabled {
		skip[strings.TrimSpace(name)] = true
	}
	filtered := make([]*analysis.Analyzer, 0, len(analyzers))
	for _, a := range analyzers {
		if a == nil || skip[a.Name] {
			continue
		}
		skip[a.Name] = true
		filtered = append(filtered, a)
	}
	return filtered
}
