package domain

import "context"

// SpendRecordRepository is the abstraction for any kind of database intended
// to persist the spend records of a spentbook node.
type SpendRecordRepository interface {
	// GetSpendRecords returns the records found for the given fingerprints.
	// Missing ones are simply not part of the result.
	GetSpendRecords(
		ctx context.Context, fingerprints []Fingerprint,
	) (map[Fingerprint]SpendRecord, error)
	// AddSpendRecords durably writes all the given records in a single
	// transaction. If any of them already exists nothing is written and
	// ErrSpendRecordExists is returned.
	AddSpendRecords(ctx context.Context, records []SpendRecord) error
	// GetAllSpendRecords returns every record of the ledger.
	GetAllSpendRecords(ctx context.Context) ([]SpendRecord, error)
	Close()
}
