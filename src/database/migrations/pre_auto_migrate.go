package migrations

import (
	"fmt"

	"gorm.io/gorm"
)

type columnRename struct {
	table string
	from  string
	to    string
}

// Early schemas stored the bar timeframe in a column called "interval", which
// postgres treats as a keyword.
var legacyColumnRenames = []columnRename{
	{table: "bars", from: "interval", to: "timeframe"},
}

// PrepareLegacyColumns renames old columns before AutoMigrate so it does not add
// an empty NOT NULL column next to the populated legacy one.
func PrepareLegacyColumns(db *gorm.DB) error {
	m := db.Migrator()

	for _, r := range legacyColumnRenames {
		if !m.HasTable(r.table) {
			continue
		}
		if !m.HasColumn(r.table, r.from) || m.HasColumn(r.table, r.to) {
			continue
		}

		stmt := fmt.Sprintf(`ALTER TABLE %s RENAME COLUMN "%s" TO %s`, r.table, r.from, r.to)
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("rename %s.%s to %s: %w", r.table, r.from, r.to, err)
		}
	}

	return nil
}
