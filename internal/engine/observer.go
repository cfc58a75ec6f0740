package engine

import "github.com/roach88/luma/internal/ir"

// Observer is notified of store activity. Callbacks run synchronously on the
// goroutine that owns the store and must not call back into it.
type Observer interface {
	FactAsserted(fact ir.Statement)
	RuleRegistered(rule ir.Statement)
	RuleFired(rule ir.Statement, binding ir.Binding)
}

// Observers fans out to several observers in order.
type Observers []Observer

func (os Observers) FactAsserted(fact ir.Statement) {
	for _, o := range os {
		o.FactAsserted(fact)
	}
}

func (os Observers) RuleRegistered(rule ir.Statement) {
	for _, o := range os {
		o.RuleRegistered(rule)
	}
}

func (os Observers) RuleFired(rule ir.Statement, binding ir.Binding) {
	for _, o := range os {
		o.RuleFired(rule, binding)
	}
}
