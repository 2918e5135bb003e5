// Package ast defines the node variants the external parser is contracted
// to emit (spec.md §1: "The design assumes a parser that emits the AST node
// variants enumerated in §3"). Nothing in this package walks or interprets
// the tree — that's internal/emit's job — it only fixes the shapes emit.go
// can switch over.
package ast

import "github.com/example/gots/internal/types"

// Pos is the source location every node carries, so a fatal diagnostic
// raised deep inside emission can still point at "the current token" per
// spec.md §7, without this package needing to know anything about the
// lexer's own token representation.
type Pos struct {
	Line, Col int
}

// Node is implemented by every AST variant. ResultType is filled in by the
// emitter as it visits the node (spec.md §3 invariant: "every reachable AST
// node sets result_type before its emit returns").
type Node interface {
	Position() Pos
	SetResultType(types.DataType)
	ResultType() types.DataType
}

// base is embedded by every concrete node to satisfy Node without
// boilerplate in each variant.
type base struct {
	Pos    Pos
	Result types.DataType
}

func (b *base) Position() Pos                       { return b.Pos }
func (b *base) SetResultType(t types.DataType)      { b.Result = t }
func (b *base) ResultType() types.DataType          { return b.Result }

// --- literals ----------------------------------------------------------------

type NumberLiteral struct {
	base
	Value    float64
	IntValue int64
	IsInt    bool
	Declared types.DataType // explicit suffix/annotation, or UNKNOWN
}

type StringLiteral struct {
	base
	Value string
}

type BooleanLiteral struct {
	base
	Value bool
}

type RegexLiteral struct {
	base
	Pattern string
	Flags   string
}

// --- identifiers and access ----------------------------------------------------

type Identifier struct {
	base
	Name string
}

type PropertyAccess struct {
	base
	Object   Node
	Property string
}

// ExpressionPropertyAccess is PropertyAccess with a computed property name
// (`obj[expr]` used in a member position, as opposed to `obj.name`).
type ExpressionPropertyAccess struct {
	base
	Object     Node
	PropertyExpr Node
}

type ArrayAccess struct {
	base
	Object Node
	Index  Node
	IsSlice bool
	SliceEnd Node // non-nil when IsSlice
}

// --- operators -----------------------------------------------------------------

type BinaryOp struct {
	base
	Op    string // "+","-","*","/","%","**","==","!=","<","<=",">",">=","&&","||"
	Left  Node
	Right Node
}

type LogicalOp struct {
	base
	Op    string // "&&" or "||"
	Left  Node
	Right Node
}

type Ternary struct {
	base
	Cond, Then, Else Node
}

type Assignment struct {
	base
	Target   Node // Identifier, PropertyAccess, or ArrayAccess
	Value    Node
	Declared types.DataType // explicit `let x: T =`, or UNKNOWN if inferred
}

// IncDec covers both prefix and postfix ++/--.
type IncDec struct {
	base
	Target  Node
	Op      string // "++" or "--"
	Prefix  bool
}

// --- literals producing heap objects --------------------------------------------

type ArrayLiteral struct {
	base
	Elements []Node
}

type TypedArrayLiteral struct {
	base
	ElemType types.DataType
	Elements []Node
}

type ObjectLiteral struct {
	base
	Keys   []string
	Values []Node
}

// --- calls -----------------------------------------------------------------

type MethodCall struct {
	base
	Object Node
	Method string
	Args   []Node
}

// ExpressionMethodCall is MethodCall with a computed method-name expression;
// always dispatches dynamically (no runtime-object fusion, no static class
// dispatch).
type ExpressionMethodCall struct {
	base
	Object    Node
	MethodExpr Node
	Args      []Node
}

// RuntimeCall is the dedicated node kind design-notes §9 calls for: the
// parser recognizes `runtime.X.method(...)` syntactically and emits this
// instead of a generic MethodCall, so internal/emit never pattern-matches
// identifier strings to detect the sentinel.
type RuntimeCall struct {
	base
	Namespace string
	Method    string
	Args      []Node
}

type FunctionCall struct {
	base
	Callee Node // Identifier or FunctionExpression
	Args   []Node
}

type NewExpression struct {
	base
	ClassName string
	Args      []Node
	NamedArgs map[string]Node // Dart-style `new C{k: v}`; nil if positional
}

type SuperCall struct {
	base
	Args []Node
}

type SuperMethodCall struct {
	base
	Method string
	Args   []Node
}

// GoExpression lowers a `go f(...)` spawn; spec.md §4.5 distinguishes the
// FunctionExpression-callee fast path from the general case.
type GoExpression struct {
	base
	Call *FunctionCall
}

// AwaitExpression awaits a Promise-typed expression.
type AwaitExpression struct {
	base
	Operand Node
}

// --- functions/classes -----------------------------------------------------

type Parameter struct {
	Name string
	Type types.DataType
	ClassName string
}

type FunctionExpression struct {
	base
	Name       string // "" until the compilation manager assigns one
	Params     []Parameter
	ReturnType types.DataType
	Body       []Node
}

type FunctionDecl struct {
	base
	Name       string
	Params     []Parameter
	ReturnType types.DataType
	Body       []Node
}

type MethodDecl struct {
	base
	ClassName  string
	Name       string
	Params     []Parameter
	ReturnType types.DataType
	Body       []Node
	Static     bool
}

type ConstructorDecl struct {
	base
	ClassName string
	Params    []Parameter
	Body      []Node
}

type OperatorOverloadDecl struct {
	base
	ClassName string
	Token     string // "[]", "[:]", "+", "==", ...
	Params    []Parameter
	ReturnType types.DataType
	Body      []Node
}

type Field struct {
	Name    string
	Type    types.DataType
	Default Node // nil if none
}

type ClassDecl struct {
	base
	Name       string
	ParentName string // "" if none
	Fields     []Field
	Methods    []*MethodDecl
	Constructor *ConstructorDecl
	Operators  []*OperatorOverloadDecl
}

// --- statements --------------------------------------------------------------

type IfStatement struct {
	base
	Cond Node
	Then []Node
	Else []Node
}

type ForLoop struct {
	base
	Init, Cond, Post Node
	Body             []Node
}

type ForEachLoop struct {
	base
	VarName   string
	Iterable  Node
	Body      []Node
}

type SwitchCase struct {
	Value Node // nil for default
	Body  []Node
}

type SwitchStatement struct {
	base
	Discriminant Node
	Cases        []SwitchCase
}

type BreakStatement struct{ base }

type ReturnStatement struct {
	base
	Value Node // nil for bare `return`
}

type ExpressionStatement struct {
	base
	Expr Node
}

// --- modules -----------------------------------------------------------------

type ImportBinding struct {
	LocalName  string
	ExportName string
}

type ImportStatement struct {
	base
	ModulePath string
	Bindings   []ImportBinding
}

type ExportStatement struct {
	base
	Name  string
	Value Node // non-nil for `export const x = <literal>`
}

// Program is the root node: a flat sequence of top-level statements and
// declarations, in source order.
type Program struct {
	base
	Body []Node
}
