package main

import (
	"github.com/example/gots/internal/ast"
	"github.com/example/gots/internal/types"
)

// demoProgram stands in for a parser's output:
//
//	let x: int64 = 2;
//	let y: int64 = x * 3 + 1;
//	return y;
//
// The typed-arithmetic program from the end-to-end scenarios, compiled to
// pure machine instructions with no runtime calls — so the finalized entry
// point actually executes through internal/native and run() logs the
// returned 7. Programs that call Go-hosted runtime symbols (console.log
// and the rest of the ABI) are refused by run() until the SysV-to-Go half
// of the calling boundary exists; see DESIGN.md, "The native-call
// boundary". A production deployment replaces this with whatever an
// actual lexer/parser produces.
func demoProgram() *ast.Program {
	intLit := func(v int64) *ast.NumberLiteral {
		return &ast.NumberLiteral{IntValue: v, IsInt: true, Declared: types.INT64}
	}
	return &ast.Program{
		Body: []ast.Node{
			&ast.Assignment{
				Target:   &ast.Identifier{Name: "x"},
				Value:    intLit(2),
				Declared: types.INT64,
			},
			&ast.Assignment{
				Target: &ast.Identifier{Name: "y"},
				Value: &ast.BinaryOp{
					Op: "+",
					Left: &ast.BinaryOp{
						Op:    "*",
						Left:  &ast.Identifier{Name: "x"},
						Right: intLit(3),
					},
					Right: intLit(1),
				},
				Declared: types.INT64,
			},
			&ast.ReturnStatement{Value: &ast.Identifier{Name: "y"}},
		},
	}
}
