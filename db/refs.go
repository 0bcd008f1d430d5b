package db

import (
	"context"
	"fmt"

	"gitnotify/models"
)

type refRow struct {
	RefName  string `db:"ref_name"`
	LastHash string `db:"last_hash"`
}

// GetRefs returns the persisted reference baseline for a repository as
// a ref-name to hash mapping.
func (db *DB) GetRefs(ctx context.Context, repoID int64) (models.RefSnapshot, error) {
	var rows []refRow
	query := `SELECT ref_name, last_hash FROM repository_refs WHERE repository_id = $1`

	if err := db.conn.SelectContext(ctx, &rows, query, repoID); err != nil {
		return nil, fmt.Errorf("%w: failed to get refs for repository %d: %v", ErrQueryFailed, repoID, err)
	}

	refs := make(models.RefSnapshot, len(rows))
	for _, row := range rows {
		refs[row.RefName] = row.LastHash
	}
	return refs, nil
}

// UpsertRef records the last observed hash for one reference. The
// (repository, ref_name) pair is the unique key, so concurrent writers
// to the same reference are serialized by the row upsert.
func (db *DB) UpsertRef(ctx context.Context, repoID int64, refName, hash string) error {
	if refName == "" || hash == "" {
		return fmt.Errorf("%w: ref name and hash cannot be empty", ErrInvalidInput)
	}

	query := `
		INSERT INTO repository_refs (repository_id, ref_name, last_hash)
		VALUES ($1, $2, $3)
		ON CONFLICT (repository_id, ref_name) DO UPDATE SET last_hash = EXCLUDED.last_hash
	`

	if _, err := db.conn.ExecContext(ctx, query, repoID, refName, hash); err != nil {
		return fmt.Errorf("%w: failed to upsert ref %s: %v", ErrQueryFailed, refName, err)
	}
	return nil
}

// DeleteRef removes one tracked reference row.
func (db *DB) DeleteRef(ctx context.Context, repoID int64, refName string) error {
	query := `DELETE FROM repository_refs WHERE repository_id = $1 AND ref_name = $2`

	if _, err := db.conn.ExecContext(ctx, query, repoID, refName); err != nil {
		return fmt.Errorf("%w: failed to delete ref %s: %v", ErrQueryFailed, refName, err)
	}
	return nil
}
