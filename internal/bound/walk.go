package bound

// Inspect walks a block depth-first in source order. stmtFn and exprFn
// may be nil; returning false skips that node's children. Lambda bodies
// are visited too, since scans like "does this body await inside a
// handler" must see nested code.
func Inspect(b *Block, stmtFn func(*Stmt) bool, exprFn func(*Expr) bool) {
	walkBlock(b, stmtFn, exprFn)
}

func walkBlock(b *Block, stmtFn func(*Stmt) bool, exprFn func(*Expr) bool) {
	if b == nil {
		return
	}
	for _, s := range b.Stmts {
		walkStmt(s, stmtFn, exprFn)
	}
}

func walkStmt(s *Stmt, stmtFn func(*Stmt) bool, exprFn func(*Expr) bool) {
	if s == nil {
		return
	}
	if stmtFn != nil && !stmtFn(s) {
		return
	}
	switch d := s.Data.(type) {
	case LocalDeclData:
		walkExpr(d.Init, stmtFn, exprFn)
	case ExprStmtData:
		walkExpr(d.Expr, stmtFn, exprFn)
	case AssignData:
		walkExpr(d.Target, stmtFn, exprFn)
		walkExpr(d.Value, stmtFn, exprFn)
	case ReturnData:
		walkExpr(d.Value, stmtFn, exprFn)
	case IfData:
		walkExpr(d.Cond, stmtFn, exprFn)
		walkBlock(d.Then, stmtFn, exprFn)
		walkBlock(d.Else, stmtFn, exprFn)
	case WhileData:
		walkExpr(d.Cond, stmtFn, exprFn)
		walkBlock(d.Body, stmtFn, exprFn)
	case BlockStmtData:
		walkBlock(d.Block, stmtFn, exprFn)
	case TryData:
		walkBlock(d.Body, stmtFn, exprFn)
		for _, c := range d.Catches {
			walkBlock(c.Body, stmtFn, exprFn)
		}
		walkBlock(d.Finally, stmtFn, exprFn)
	case ThrowData:
		walkExpr(d.Value, stmtFn, exprFn)
	case YieldData:
		walkExpr(d.Value, stmtFn, exprFn)
	case SwitchData:
		walkExpr(d.Value, stmtFn, exprFn)
		for _, c := range d.Cases {
			walkBlock(c.Body, stmtFn, exprFn)
		}
		walkBlock(d.Default, stmtFn, exprFn)
	}
}

func walkExpr(e *Expr, stmtFn func(*Stmt) bool, exprFn func(*Expr) bool) {
	if e == nil {
		return
	}
	if exprFn != nil && !exprFn(e) {
		return
	}
	switch d := e.Data.(type) {
	case FieldRefData:
		walkExpr(d.Receiver, stmtFn, exprFn)
	case UnaryData:
		walkExpr(d.Operand, stmtFn, exprFn)
	case BinaryData:
		walkExpr(d.Left, stmtFn, exprFn)
		walkExpr(d.Right, stmtFn, exprFn)
	case CallData:
		walkExpr(d.Receiver, stmtFn, exprFn)
		for _, a := range d.Args {
			walkExpr(a, stmtFn, exprFn)
		}
	case NewData:
		for _, a := range d.Args {
			walkExpr(a, stmtFn, exprFn)
		}
	case LambdaData:
		walkBlock(d.Body, stmtFn, exprFn)
	case AwaitData:
		walkExpr(d.Operand, stmtFn, exprFn)
	case InterpolatedData:
		for _, p := range d.Parts {
			walkExpr(p.Expr, stmtFn, exprFn)
		}
	case IsPatternData:
		walkExpr(d.Operand, stmtFn, exprFn)
	}
}
