package domain

import "errors"

// Sentinel errors surfaced across the import and store layers. Wrap with
// fmt.Errorf("...: %w", err) and check with errors.Is.
var (
	// ErrFormatUnrecognized means a statement file matches neither known
	// CSV layout. The import is aborted before any row processing.
	ErrFormatUnrecognized = errors.New("statement format not recognized")

	// ErrCategoryProtected rejects rename/delete of the reserved
	// subscriptions category.
	ErrCategoryProtected = errors.New("category is protected")

	// ErrCategoryInUse rejects deleting a category still referenced by
	// transactions.
	ErrCategoryInUse = errors.New("category has transactions")

	// ErrInvalidCategoryAssignment rejects a category change that violates
	// the subscription-linkage invariant: subscription-linked transactions
	// must hold the protected category, all others must not.
	ErrInvalidCategoryAssignment = errors.New("invalid category assignment")

	// ErrDuplicateName rejects creating an entity whose unique name is
	// already taken.
	ErrDuplicateName = errors.New("name already exists")

	// ErrNotFound is returned by lookups that find no row.
	ErrNotFound = errors.New("not found")
)
