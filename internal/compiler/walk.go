package compiler

import "github.com/example/gots/internal/ast"

// walk visits n and every child node reachable from it, calling visit on
// each. It exists only to let discovery (phase 1) find FunctionExpression
// nodes nested anywhere in a function body or top-level statement list —
// the compilation manager needs to see every one before any body is
// emitted, since a later function may reference an earlier one by its
// assigned name before that name's address is known (§4.6).
func walk(n ast.Node, visit func(ast.Node)) {
	if n == nil {
		return
	}
	visit(n)
	switch v := n.(type) {
	case *ast.BinaryOp:
		walk(v.Left, visit)
		walk(v.Right, visit)
	case *ast.LogicalOp:
		walk(v.Left, visit)
		walk(v.Right, visit)
	case *ast.Ternary:
		walk(v.Cond, visit)
		walk(v.Then, visit)
		walk(v.Else, visit)
	case *ast.Assignment:
		walk(v.Target, visit)
		walk(v.Value, visit)
	case *ast.IncDec:
		walk(v.Target, visit)
	case *ast.ArrayLiteral:
		for _, el := range v.Elements {
			walk(el, visit)
		}
	case *ast.TypedArrayLiteral:
		for _, el := range v.Elements {
			walk(el, visit)
		}
	case *ast.ObjectLiteral:
		for _, val := range v.Values {
			walk(val, visit)
		}
	case *ast.ArrayAccess:
		walk(v.Object, visit)
		walk(v.Index, visit)
		walk(v.SliceEnd, visit)
	case *ast.PropertyAccess:
		walk(v.Object, visit)
	case *ast.ExpressionPropertyAccess:
		walk(v.Object, visit)
		walk(v.PropertyExpr, visit)
	case *ast.MethodCall:
		walk(v.Object, visit)
		for _, a := range v.Args {
			walk(a, visit)
		}
	case *ast.ExpressionMethodCall:
		walk(v.Object, visit)
		walk(v.MethodExpr, visit)
		for _, a := range v.Args {
			walk(a, visit)
		}
	case *ast.RuntimeCall:
		for _, a := range v.Args {
			walk(a, visit)
		}
	case *ast.FunctionCall:
		walk(v.Callee, visit)
		for _, a := range v.Args {
			walk(a, visit)
		}
	case *ast.NewExpression:
		for _, a := range v.Args {
			walk(a, visit)
		}
		for _, a := range v.NamedArgs {
			walk(a, visit)
		}
	case *ast.SuperCall:
		for _, a := range v.Args {
			walk(a, visit)
		}
	case *ast.SuperMethodCall:
		for _, a := range v.Args {
			walk(a, visit)
		}
	case *ast.GoExpression:
		walk(v.Call, visit)
	case *ast.AwaitExpression:
		walk(v.Operand, visit)
	case *ast.FunctionExpression:
		for _, s := range v.Body {
			walk(s, visit)
		}
	case *ast.IfStatement:
		walk(v.Cond, visit)
		for _, s := range v.Then {
			walk(s, visit)
		}
		for _, s := range v.Else {
			walk(s, visit)
		}
	case *ast.ForLoop:
		walk(v.Init, visit)
		walk(v.Cond, visit)
		walk(v.Post, visit)
		for _, s := range v.Body {
			walk(s, visit)
		}
	case *ast.ForEachLoop:
		walk(v.Iterable, visit)
		for _, s := range v.Body {
			walk(s, visit)
		}
	case *ast.SwitchStatement:
		walk(v.Discriminant, visit)
		for _, c := range v.Cases {
			walk(c.Value, visit)
			for _, s := range c.Body {
				walk(s, visit)
			}
		}
	case *ast.ReturnStatement:
		walk(v.Value, visit)
	case *ast.ExpressionStatement:
		walk(v.Expr, visit)
	case *ast.ExportStatement:
		walk(v.Value, visit)
	}
}

// walkAll walks a flat statement list, e.g. a function body or the program
// root.
func walkAll(body []ast.Node, visit func(ast.Node)) {
	for _, s := range body {
		walk(s, visit)
	}
}
