package langa

import (
	"fmt"
	"strconv"
	"strings"
)

// Print renders a Program back into Lang-A source text. It keeps emitted
// line numbers close to the original by padding with blank lines
// (best-effort) and preserves comments verbatim.
//
// The rewritten program is not wrapped in a synthetic with(sandbox)-style
// construct: this evaluator's environment model (internal/langa/env.go)
// already binds the top-level scope directly to the sandbox object, which
// achieves the same "declarations land in a reified, snapshottable object"
// contract without inventing surface syntax purely to satisfy a
// print-then-reparse round trip.
func Print(prog *Program) string {
	p := &printer{}
	p.printStmts(prog.Body, 0)
	return p.sb.String()
}

type printer struct {
	sb   strings.Builder
	line uint32
}

func (p *printer) catchUpTo(target uint32) {
	for p.line < target {
		p.sb.WriteByte('\n')
		p.line++
	}
}

func (p *printer) writeLine(s string) {
	p.sb.WriteString(s)
	p.sb.WriteByte('\n')
	p.line++
}

func (p *printer) indent(depth int) string { return strings.Repeat("  ", depth) }

func (p *printer) printStmts(stmts []Stmt, depth int) {
	for _, st := range stmts {
		p.printStmt(st, depth)
	}
}

func (p *printer) printComment(c string, depth int) {
	c = strings.TrimRight(c, "\n")
	if c == "" {
		return
	}
	for _, line := range strings.Split(c, "\n") {
		p.writeLine(p.indent(depth) + line)
	}
}

func (p *printer) printStmt(st Stmt, depth int) {
	p.printComment(st.LeadingComment(), depth)
	if st.SourceLine() > 0 {
		p.catchUpTo(st.SourceLine())
	}
	ind := p.indent(depth)
	switch s := st.(type) {
	case *TraceCallStmt:
		p.writeLine(fmt.Sprintf("%s__trace(%d);", ind, s.ProbeLine))
	case *VarDeclStmt:
		parts := make([]string, len(s.Names))
		for i, name := range s.Names {
			if s.Inits[i] != nil {
				parts[i] = fmt.Sprintf("%s = %s", name, printExpr(s.Inits[i]))
			} else {
				parts[i] = name
			}
		}
		p.writeLine(fmt.Sprintf("%s%s %s;", ind, s.Kind, strings.Join(parts, ", ")))
	case *ExprStmt:
		p.writeLine(fmt.Sprintf("%s%s;", ind, printExpr(s.X)))
	case *BlockStmt:
		p.writeLine(ind + "{")
		p.printStmts(s.Body, depth+1)
		p.writeLine(ind + "}")
	case *IfStmt:
		p.writeLine(fmt.Sprintf("%sif (%s) {", ind, printExpr(s.Cond)))
		p.printThenBody(s.Then, depth+1)
		p.writeLine(ind + "}")
		if s.Else != nil {
			if elseIf, ok := s.Else.(*IfStmt); ok {
				p.sb.WriteString(ind + "else ")
				p.line++
				p.printElseIf(elseIf, depth)
				return
			}
			p.writeLine(ind + "else {")
			p.printThenBody(s.Else, depth+1)
			p.writeLine(ind + "}")
		}
	case *ForStmt:
		init, test, update := "", "", ""
		if s.Init != nil {
			init = printForInit(s.Init)
		}
		if s.Test != nil {
			test = printExpr(s.Test)
		}
		if s.Update != nil {
			update = printExpr(s.Update)
		}
		p.writeLine(fmt.Sprintf("%sfor (%s; %s; %s) {", ind, init, test, update))
		p.printThenBody(s.Body, depth+1)
		p.writeLine(ind + "}")
	case *WhileStmt:
		p.writeLine(fmt.Sprintf("%swhile (%s) {", ind, printExpr(s.Cond)))
		p.printThenBody(s.Body, depth+1)
		p.writeLine(ind + "}")
	case *ReturnStmt:
		if s.Arg != nil {
			p.writeLine(fmt.Sprintf("%sreturn %s;", ind, printExpr(s.Arg)))
		} else {
			p.writeLine(ind + "return;")
		}
	case *ThrowStmt:
		p.writeLine(fmt.Sprintf("%sthrow %s;", ind, printExpr(s.Arg)))
	case *TryStmt:
		p.writeLine(ind + "try {")
		p.printStmts(s.Body.Body, depth+1)
		p.writeLine(ind + "}")
		if s.Catch != nil {
			p.writeLine(fmt.Sprintf("%scatch (%s) {", ind, s.CatchParam))
			p.printStmts(s.Catch.Body, depth+1)
			p.writeLine(ind + "}")
		}
		if s.Finally != nil {
			p.writeLine(ind + "finally {")
			p.printStmts(s.Finally.Body, depth+1)
			p.writeLine(ind + "}")
		}
	case *FunctionDeclStmt:
		p.writeLine(fmt.Sprintf("%sfunction %s(%s) {", ind, s.Name, strings.Join(s.Params, ", ")))
		p.printStmts(s.Body.Body, depth+1)
		p.writeLine(ind + "}")
	default:
		p.writeLine(fmt.Sprintf("%s/* unknown statement */", ind))
	}
}

// printThenBody prints a normalized (always-block) body's contents without
// re-emitting its own braces (the caller already wrote them).
func (p *printer) printThenBody(st Stmt, depth int) {
	if blk, ok := st.(*BlockStmt); ok {
		p.printStmts(blk.Body, depth)
		return
	}
	p.printStmt(st, depth)
}

func (p *printer) printElseIf(ifs *IfStmt, depth int) {
	ind := ""
	p.sb.WriteString(fmt.Sprintf("if (%s) {\n", printExpr(ifs.Cond)))
	p.line++
	p.printThenBody(ifs.Then, depth+1)
	p.writeLine(ind + p.indent(depth) + "}")
	if ifs.Else != nil {
		if nested, ok := ifs.Else.(*IfStmt); ok {
			p.sb.WriteString(p.indent(depth) + "else ")
			p.line++
			p.printElseIf(nested, depth)
			return
		}
		p.writeLine(p.indent(depth) + "else {")
		p.printThenBody(ifs.Else, depth+1)
		p.writeLine(p.indent(depth) + "}")
	}
}

func printForInit(st Stmt) string {
	switch s := st.(type) {
	case *VarDeclStmt:
		parts := make([]string, len(s.Names))
		for i, name := range s.Names {
			if s.Inits[i] != nil {
				parts[i] = fmt.Sprintf("%s = %s", name, printExpr(s.Inits[i]))
			} else {
				parts[i] = name
			}
		}
		return fmt.Sprintf("%s %s", s.Kind, strings.Join(parts, ", "))
	case *ExprStmt:
		return printExpr(s.X)
	default:
		return ""
	}
}

func printExpr(e Expr) string {
	switch x := e.(type) {
	case *Ident:
		return x.Name
	case *NumberLit:
		return x.Text
	case *StringLit:
		return strconv.Quote(x.Value)
	case *BoolLit:
		if x.Value {
			return "true"
		}
		return "false"
	case *NullLit:
		return "null"
	case *ArrayLit:
		parts := make([]string, len(x.Elements))
		for i, el := range x.Elements {
			parts[i] = printExpr(el)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *ObjectLit:
		parts := make([]string, len(x.Props))
		for i, prop := range x.Props {
			parts[i] = fmt.Sprintf("%s: %s", prop.Key, printExpr(prop.Value))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *AssignExpr:
		return fmt.Sprintf("%s %s %s", printExpr(x.Target), x.Op, printExpr(x.Value))
	case *BinaryExpr:
		return fmt.Sprintf("(%s %s %s)", printExpr(x.Left), x.Op, printExpr(x.Right))
	case *LogicalExpr:
		return fmt.Sprintf("(%s %s %s)", printExpr(x.Left), x.Op, printExpr(x.Right))
	case *UnaryExpr:
		return fmt.Sprintf("%s%s", x.Op, printExpr(x.X))
	case *UpdateExpr:
		if x.Prefix {
			return fmt.Sprintf("%s%s", x.Op, printExpr(x.Target))
		}
		return fmt.Sprintf("%s%s", printExpr(x.Target), x.Op)
	case *MemberExpr:
		if x.Computed {
			return fmt.Sprintf("%s[%s]", printExpr(x.Object), printExpr(x.Property))
		}
		return fmt.Sprintf("%s.%s", printExpr(x.Object), printExpr(x.Property))
	case *CallExpr:
		parts := make([]string, len(x.Args))
		for i, a := range x.Args {
			parts[i] = printExpr(a)
		}
		return fmt.Sprintf("%s(%s)", printExpr(x.Callee), strings.Join(parts, ", "))
	case *FunctionExpr:
		inner := &printer{}
		inner.printStmts(x.Body.Body, 0)
		return fmt.Sprintf("function %s(%s) {\n%s}", x.Name, strings.Join(x.Params, ", "), inner.sb.String())
	default:
		return ""
	}
}
