package escrow

import "context"

type txnKey struct{}

// withTxn marks ctx as belonging to an in-flight transaction. External
// effects receive the marked context, so a hook that calls back into the
// engine with it is recognised and rejected.
func withTxn(ctx context.Context) context.Context {
	return context.WithValue(ctx, txnKey{}, struct{}{})
}

// inTxn reports whether ctx was issued to an external effect.
func inTxn(ctx context.Context) bool {
	return ctx.Value(txnKey{}) != nil
}
