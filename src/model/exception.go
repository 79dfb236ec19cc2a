package model

import "time"

// Exception is a captured failure persisted for later inspection, e.g. a
// symbol the analyzer had to skip.
type Exception struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Where the error happened
	Service string `gorm:"size:100;index" json:"service"` // e.g. "analyzer"
	Module  string `gorm:"size:100;index" json:"module"`  // e.g. "indicator"
	Method  string `gorm:"size:100" json:"method"`        // e.g. "Compute"

	Message string `gorm:"type:text" json:"message"`
	Stack   string `gorm:"type:text" json:"stack"`

	// debug | info | warn | error | fatal
	Level string `gorm:"size:20;index" json:"level"`

	// JSON encoded extra context
	Context string `gorm:"type:text" json:"context,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
