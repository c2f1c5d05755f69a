package dataset

import (
	"database/sql"
	"fmt"
)

// DefaultTable is the sample table used when none is configured.
const DefaultTable = "samples"

const samplesSchema = `
CREATE TABLE IF NOT EXISTS %s (
    id TEXT PRIMARY KEY,
    label TEXT,
    features BLOB
);
`

// EnsureSchema creates the samples table in the provided database if it does
// not already exist.
func EnsureSchema(db *sql.DB, table string) error {
	if err := ValidateTableName(table); err != nil {
		return err
	}
	_, err := db.Exec(fmt.Sprintf(samplesSchema, table))
	return err
}

// ValidateTableName rejects names that are not plain SQL identifiers, since
// table names are interpolated into statements.
func ValidateTableName(name string) error {
	if name == "" {
		return fmt.Errorf("dataset: table name is empty")
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return fmt.Errorf("dataset: invalid table name %q", name)
		}
	}
	return nil
}
