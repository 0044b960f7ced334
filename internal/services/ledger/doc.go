/*
Package ledger implements the transaction executor: the single mutating
entry point for wallet balances.

Every balance change runs the same spine:

 1. Snapshot the wallet and validate the request.
 2. Durably log a transaction intent (append-only, survives rollback).
 3. Execute the atomic write set in one database transaction:
    a conditional wallet update keyed on the snapshotted balance,
    the immutable transaction row, and the entitlement upsert.
 4. Re-read all three records and verify they agree.

The conditional update in step 3 is the only serialization point for
concurrent spenders: "check balance then update" is a single statement,
so two debits racing on one wallet can never both apply. The loser gets
ErrConcurrentModification and retries from a fresh snapshot.

Usage:

	svc := ledger.NewService(repo, intents, escalations, cache, ledger.Config{}, metrics)

	res, err := svc.Debit(ctx, ledger.DebitRequest{
	    UserID:      42,
	    ActionType:  "profile_analysis",
	    ReferenceID: "alice",
	    Amount:      30,
	})

Error Handling:

	ErrWalletNotFound, ErrInsufficientCredits  terminal, no side effects
	ErrConcurrentModification                  retry with a fresh snapshot
	ErrStoreUnavailable                        retry with backoff
	ErrInconsistentResult                      committed but verification
	                                           failed; escalated for manual
	                                           repair, do not retry blindly

A failed verification never triggers automatic correction. The
discrepancy is recorded as a durable inconsistency and repaired through
an explicit adjustment transaction, so the fix is as auditable as the
fault.
*/
package ledger
