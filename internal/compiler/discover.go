package compiler

import (
	"fmt"

	"github.com/example/gots/internal/ast"
	"github.com/example/gots/internal/classreg"
	"github.com/example/gots/internal/types"
)

// discover implements §4.6 phase 1: walk the whole program once, registering
// every function-shaped thing — top-level declarations, class members, and
// FunctionExpressions nested anywhere inside any of those bodies or inside
// top-level executable statements — before any body is emitted. This is what
// lets a function call a sibling declared later in the source, or capture an
// anonymous callback passed to go/setTimeout/Array methods, without the
// emitter ever needing a second pass.
func (m *Manager) discover(program *ast.Program) ([]*funcBody, error) {
	var bodies []*funcBody

	for _, n := range program.Body {
		switch v := n.(type) {
		case *ast.FunctionDecl:
			fe, err := m.register(v.Name, v.Params, v.ReturnType)
			if err != nil {
				return nil, err
			}
			bodies = append(bodies, &funcBody{entry: fe, params: v.Params, stmts: v.Body})
			nested, err := m.discoverNestedFuncExprs(v.Body)
			if err != nil {
				return nil, err
			}
			bodies = append(bodies, nested...)

		case *ast.ClassDecl:
			classBodies, err := m.discoverClass(v)
			if err != nil {
				return nil, err
			}
			bodies = append(bodies, classBodies...)

		default:
			nested, err := m.discoverNestedFuncExprsInNode(n)
			if err != nil {
				return nil, err
			}
			bodies = append(bodies, nested...)
		}
	}
	return bodies, nil
}

func (m *Manager) discoverClass(c *ast.ClassDecl) ([]*funcBody, error) {
	var bodies []*funcBody
	fieldNames := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		fieldNames[i] = f.Name
	}
	m.classes.Declare(c.Name, c.ParentName, fieldNames)

	if c.Constructor != nil {
		symbol := fmt.Sprintf("__constructor_%s__", c.Name)
		fe, err := m.register(symbol, c.Constructor.Params, types.VOID)
		if err != nil {
			return nil, err
		}
		bodies = append(bodies, &funcBody{entry: fe, params: c.Constructor.Params, stmts: c.Constructor.Body, thisClass: c.Name})
		nested, err := m.discoverNestedFuncExprs(c.Constructor.Body)
		if err != nil {
			return nil, err
		}
		bodies = append(bodies, nested...)
	}

	for _, meth := range c.Methods {
		symbol := fmt.Sprintf("__method_%s_%s__", c.Name, meth.Name)
		if err := m.classes.RegisterMethod(c.Name, meth.Name, symbol); err != nil {
			return nil, err
		}
		fe, err := m.register(symbol, meth.Params, meth.ReturnType)
		if err != nil {
			return nil, err
		}
		fb := &funcBody{entry: fe, params: meth.Params, stmts: meth.Body}
		if !meth.Static {
			fb.thisClass = c.Name
		}
		bodies = append(bodies, fb)
		nested, err := m.discoverNestedFuncExprs(meth.Body)
		if err != nil {
			return nil, err
		}
		bodies = append(bodies, nested...)
	}

	for _, op := range c.Operators {
		argTypes := make([]types.DataType, len(op.Params))
		for i, p := range op.Params {
			argTypes[i] = p.Type
		}
		symbol := fmt.Sprintf("__op_%s_%s_%s__", c.Name, mangleOpToken(op.Token), mangleSigLocal(argTypes))
		if err := m.classes.RegisterOverload(c.Name, classreg.Overload{
			Token:      op.Token,
			ParamTypes: argTypes,
			Symbol:     symbol,
			ReturnType: op.ReturnType,
		}); err != nil {
			return nil, err
		}
		fe, err := m.register(symbol, op.Params, op.ReturnType)
		if err != nil {
			return nil, err
		}
		bodies = append(bodies, &funcBody{entry: fe, params: op.Params, stmts: op.Body, thisClass: c.Name})
		nested, err := m.discoverNestedFuncExprs(op.Body)
		if err != nil {
			return nil, err
		}
		bodies = append(bodies, nested...)
	}

	return bodies, nil
}

// discoverNestedFuncExprs walks a statement list looking for
// FunctionExpression nodes (function literals used as values: callbacks,
// `go` targets, variables). Each gets an assigned name and its own
// funcBody; the surrounding statement is emitted normally afterward, and
// emitFunctionExpressionRef resolves the assigned name at its use site.
func (m *Manager) discoverNestedFuncExprs(body []ast.Node) ([]*funcBody, error) {
	var bodies []*funcBody
	var walkErr error
	walkAll(body, func(n ast.Node) {
		fe, ok := n.(*ast.FunctionExpression)
		if !ok {
			return
		}
		if fe.Name == "" {
			fe.Name = m.nextAnonName()
		}
		entry, err := m.register(fe.Name, fe.Params, fe.ReturnType)
		if err != nil {
			walkErr = err
			return
		}
		bodies = append(bodies, &funcBody{entry: entry, params: fe.Params, stmts: fe.Body})
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return bodies, nil
}

func (m *Manager) discoverNestedFuncExprsInNode(n ast.Node) ([]*funcBody, error) {
	return m.discoverNestedFuncExprs([]ast.Node{n})
}

func mangleOpToken(tok string) string {
	switch tok {
	case "[]":
		return "index"
	case "[:]":
		return "slice"
	default:
		return tok
	}
}

func mangleSigLocal(argTypes []types.DataType) string {
	if len(argTypes) == 0 {
		return "void"
	}
	out := ""
	for i, t := range argTypes {
		if i > 0 {
			out += "_"
		}
		out += t.String()
	}
	return out
}
