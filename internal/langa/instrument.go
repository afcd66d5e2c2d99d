package langa

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/vru6650/tracehost/pkg/logflags"
)

// InstrumentationError wraps a parser failure surfaced to the HTTP boundary
// as a payload-level error rather than an HTTP error.
type InstrumentationError struct {
	Msg string
}

func (e *InstrumentationError) Error() string { return e.Msg }

const defaultCacheSize = 256

var (
	cacheOnce sync.Once
	cache     *lru.Cache
	cacheSize = defaultCacheSize
)

// SetCacheSize overrides the instrumentation cache's capacity. It only has
// an effect if called before the first call to Instrument, since the cache
// is created lazily, once, on first use; a non-positive size is ignored.
func SetCacheSize(n int) {
	if n > 0 {
		cacheSize = n
	}
}

func instrumentCache() *lru.Cache {
	cacheOnce.Do(func() {
		c, err := lru.New(cacheSize)
		if err != nil {
			// lru.New only errors on a non-positive size; SetCacheSize
			// already rejects those, so this is unreachable in practice.
			panic(err)
		}
		cache = c
	})
	return cache
}

func sourceKey(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// Instrument parses source, rewrites block-scoped declaration kinds to the
// legacy function-scoped kind, and injects a __trace(line) probe before
// every statement. It is idempotent: re-instrumenting its own output does
// not stack probes.
func Instrument(source string) (string, error) {
	log := logflags.InstrumenterLogger()
	key := sourceKey(source)
	if v, ok := instrumentCache().Get(key); ok {
		log.WithFields(logrus.Fields{"cacheHit": true}).Debug("instrument")
		return v.(string), nil
	}

	prog, err := Parse(source)
	if err != nil {
		log.WithError(err).Debug("parse failed")
		return "", &InstrumentationError{Msg: err.Error()}
	}

	prog.Body = rewriteStmts(prog.Body)

	out := Print(prog)
	instrumentCache().Add(key, out)
	log.WithFields(logrus.Fields{"cacheHit": false, "bytes": len(out)}).Debug("instrument")
	return out, nil
}

// rewriteStmts walks a statement list, rewriting declaration kinds in place
// and inserting a TraceCallStmt before every statement that is not itself a
// block and not already a synthetic trace call. It recurses into each
// statement's nested statement lists.
func rewriteStmts(stmts []Stmt) []Stmt {
	out := make([]Stmt, 0, len(stmts)*2)
	skipProbe := false
	for _, st := range stmts {
		if tc, ok := st.(*TraceCallStmt); ok {
			out = append(out, tc)
			skipProbe = true
			continue
		}
		rewritten := rewriteStmt(st)
		if _, isBlock := rewritten.(*BlockStmt); !isBlock && !skipProbe {
			out = append(out, &TraceCallStmt{
				baseStmt:  baseStmt{Line: st.SourceLine()},
				ProbeLine: st.SourceLine(),
			})
		}
		skipProbe = false
		out = append(out, rewritten)
	}
	return out
}

// normalizeBody ensures a control-flow body is a block, so that a single
// bare statement in "then"/loop-body position still receives its own probe
// via rewriteStmts: any statement in statement position is probed, block
// or not.
func normalizeBody(st Stmt) Stmt {
	if st == nil {
		return nil
	}
	if blk, ok := st.(*BlockStmt); ok {
		return &BlockStmt{baseStmt: blk.baseStmt, Body: rewriteStmts(blk.Body)}
	}
	return &BlockStmt{baseStmt: baseStmt{Line: st.SourceLine()}, Body: rewriteStmts([]Stmt{st})}
}

func rewriteDeclKind(v *VarDeclStmt) *VarDeclStmt {
	cp := *v
	cp.Kind = DeclVar
	cp.Inits = make([]Expr, len(v.Inits))
	for i, init := range v.Inits {
		cp.Inits[i] = rewriteExprFunctions(init)
	}
	return &cp
}

// rewriteExprFunctions recurses through an expression tree looking for
// nested function literals (a function assigned to a variable, passed as a
// callback, etc.) and instruments their bodies too, since a declaration
// kind or a probe deep inside a callback is still a declaration or
// statement, wherever it lexically appears.
func rewriteExprFunctions(e Expr) Expr {
	switch x := e.(type) {
	case nil:
		return nil
	case *FunctionExpr:
		cp := *x
		cp.Body = &BlockStmt{baseStmt: x.Body.baseStmt, Body: rewriteStmts(x.Body.Body)}
		return &cp
	case *ArrayLit:
		cp := *x
		cp.Elements = make([]Expr, len(x.Elements))
		for i, el := range x.Elements {
			cp.Elements[i] = rewriteExprFunctions(el)
		}
		return &cp
	case *ObjectLit:
		cp := *x
		cp.Props = make([]ObjectProp, len(x.Props))
		for i, prop := range x.Props {
			cp.Props[i] = ObjectProp{Key: prop.Key, Value: rewriteExprFunctions(prop.Value)}
		}
		return &cp
	case *AssignExpr:
		cp := *x
		cp.Value = rewriteExprFunctions(x.Value)
		return &cp
	case *BinaryExpr:
		cp := *x
		cp.Left, cp.Right = rewriteExprFunctions(x.Left), rewriteExprFunctions(x.Right)
		return &cp
	case *LogicalExpr:
		cp := *x
		cp.Left, cp.Right = rewriteExprFunctions(x.Left), rewriteExprFunctions(x.Right)
		return &cp
	case *UnaryExpr:
		cp := *x
		cp.X = rewriteExprFunctions(x.X)
		return &cp
	case *MemberExpr:
		cp := *x
		cp.Object = rewriteExprFunctions(x.Object)
		return &cp
	case *CallExpr:
		cp := *x
		cp.Callee = rewriteExprFunctions(x.Callee)
		cp.Args = make([]Expr, len(x.Args))
		for i, a := range x.Args {
			cp.Args[i] = rewriteExprFunctions(a)
		}
		return &cp
	default:
		return e
	}
}

func rewriteStmt(st Stmt) Stmt {
	switch s := st.(type) {
	case *VarDeclStmt:
		return rewriteDeclKind(s)
	case *FunctionDeclStmt:
		cp := *s
		cp.Body = &BlockStmt{baseStmt: s.Body.baseStmt, Body: rewriteStmts(s.Body.Body)}
		return &cp
	case *IfStmt:
		cp := *s
		cp.Cond = rewriteExprFunctions(s.Cond)
		cp.Then = normalizeBody(s.Then)
		if s.Else != nil {
			if _, isIf := s.Else.(*IfStmt); isIf {
				cp.Else = rewriteStmt(s.Else) // "else if" chain: don't wrap in a block
			} else {
				cp.Else = normalizeBody(s.Else)
			}
		}
		return &cp
	case *ForStmt:
		cp := *s
		if vd, ok := s.Init.(*VarDeclStmt); ok {
			cp.Init = rewriteDeclKind(vd)
		}
		cp.Test = rewriteExprFunctions(s.Test)
		cp.Update = rewriteExprFunctions(s.Update)
		cp.Body = normalizeBody(s.Body)
		return &cp
	case *WhileStmt:
		cp := *s
		cp.Cond = rewriteExprFunctions(s.Cond)
		cp.Body = normalizeBody(s.Body)
		return &cp
	case *ReturnStmt:
		cp := *s
		cp.Arg = rewriteExprFunctions(s.Arg)
		return &cp
	case *ThrowStmt:
		cp := *s
		cp.Arg = rewriteExprFunctions(s.Arg)
		return &cp
	case *TryStmt:
		cp := *s
		cp.Body = &BlockStmt{baseStmt: s.Body.baseStmt, Body: rewriteStmts(s.Body.Body)}
		if s.Catch != nil {
			cp.Catch = &BlockStmt{baseStmt: s.Catch.baseStmt, Body: rewriteStmts(s.Catch.Body)}
		}
		if s.Finally != nil {
			cp.Finally = &BlockStmt{baseStmt: s.Finally.baseStmt, Body: rewriteStmts(s.Finally.Body)}
		}
		return &cp
	case *BlockStmt:
		return &BlockStmt{baseStmt: s.baseStmt, Body: rewriteStmts(s.Body)}
	case *ExprStmt:
		cp := *s
		cp.X = rewriteExprFunctions(s.X)
		return &cp
	default:
		return st
	}
}
