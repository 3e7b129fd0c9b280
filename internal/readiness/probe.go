// internal/readiness/probe.go
package readiness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/xkilldash9x/pagewright/internal/driver"
)

// Probe checks whether the application under test has settled its asynchronous work.
type Probe interface {
	// Name identifies the probe in logs and errors.
	Name() string
	// Check reports whether the probe's signal exists on the page (present) and, if so,
	// whether it says the application is idle (stable).
	Check(ctx context.Context, ev driver.Evaluator) (present, stable bool, err error)
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc struct {
	ProbeName string
	Fn        func(ctx context.Context, ev driver.Evaluator) (present, stable bool, err error)
}

func (p ProbeFunc) Name() string { return p.ProbeName }

func (p ProbeFunc) Check(ctx context.Context, ev driver.Evaluator) (bool, bool, error) {
	return p.Fn(ctx, ev)
}

// scriptResult is the shape every wrapped script probe returns.
type scriptResult struct {
	Present bool `json:"present"`
	Stable  bool `json:"stable"`
}

// scriptProbe evaluates an expression that yields a boolean when the signal exists
// and null/undefined when it does not.
type scriptProbe struct {
	name   string
	script string
}

// ScriptProbe builds a probe from a JavaScript expression. The expression must evaluate
// to true/false when the framework is present and to null or undefined when it is not.
func ScriptProbe(name, expr string) Probe {
	wrapped := fmt.Sprintf(`(function() {
	const v = (%s);
	if (v === null || v === undefined) { return { present: false, stable: false }; }
	return { present: true, stable: !!v };
})()`, expr)
	return scriptProbe{name: name, script: wrapped}
}

func (p scriptProbe) Name() string { return p.name }

func (p scriptProbe) Check(ctx context.Context, ev driver.Evaluator) (bool, bool, error) {
	var res scriptResult
	if err := ev.Evaluate(ctx, p.script, &res); err != nil {
		return false, false, err
	}
	return res.Present, res.Stable, nil
}

// Built-in probe expressions.
const (
	// Angular (2+): every registered testability reports a stable zone.
	angularExpr = `(typeof window.getAllAngularTestabilities === 'function' && window.getAllAngularTestabilities().length > 0)
		? window.getAllAngularTestabilities().every(function(t) { return t.isStable(); })
		: null`
	// AngularJS: no outstanding $http requests on the root injector.
	angularJSExpr = `(window.angular && window.angular.element(document.body).injector())
		? window.angular.element(document.body).injector().get('$http').pendingRequests.length === 0
		: null`
	jqueryExpr   = `(typeof window.jQuery === 'function') ? window.jQuery.active === 0 : null`
	documentExpr = `document.readyState === 'complete'`
)

// Names accepted by Lookup.
const (
	ProbeAngular   = "angular"
	ProbeAngularJS = "angularjs"
	ProbeJQuery    = "jquery"
	ProbeDocument  = "document"
	ProbeNone      = "none"
	ProbeScript    = "script"
)

var builtins = map[string]Probe{
	ProbeAngular:   ScriptProbe(ProbeAngular, angularExpr),
	ProbeAngularJS: ScriptProbe(ProbeAngularJS, angularJSExpr),
	ProbeJQuery:    ScriptProbe(ProbeJQuery, jqueryExpr),
	ProbeDocument:  ScriptProbe(ProbeDocument, documentExpr),
	ProbeNone: ProbeFunc{ProbeName: ProbeNone, Fn: func(context.Context, driver.Evaluator) (bool, bool, error) {
		return true, true, nil
	}},
}

// DocumentReady is the generic page-load probe.
func DocumentReady() Probe { return builtins[ProbeDocument] }

// Lookup resolves a configured probe. "script" requires a custom expression.
func Lookup(name, script string) (Probe, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == ProbeScript {
		if strings.TrimSpace(script) == "" {
			return nil, fmt.Errorf("readiness probe %q requires a script expression", ProbeScript)
		}
		return ScriptProbe(ProbeScript, script), nil
	}
	if p, ok := builtins[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("unknown readiness probe %q (known: %s)", name, strings.Join(Names(), ", "))
}

// Names lists the accepted probe names.
func Names() []string {
	names := make([]string, 0, len(builtins)+1)
	for n := range builtins {
		names = append(names, n)
	}
	names = append(names, ProbeScript)
	sort.Strings(names)
	return names
}
