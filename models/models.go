package models

import (
	"time"

	"gorm.io/datatypes"
)

// Run kinds.
const (
	KindCheck        = "check"
	KindFormat       = "fmt"
	KindRenameNode   = "rename-node"
	KindRenameBranch = "rename-branch"
)

// File roles and actions.
const (
	RoleLibrary = "library"
	RoleTree    = "tree"
	RoleDiagram = "diagram"

	ActionRead      = "read"
	ActionWritten   = "written"
	ActionUnchanged = "unchanged"
)

// Run is one CLI invocation that loaded and possibly saved a project.
type Run struct {
	ID       string `gorm:"primaryKey;type:varchar(40)"`
	Kind     string `gorm:"type:varchar(20);not null;index"`
	Manifest string `gorm:"type:varchar(1024)"`

	StartedAt  time.Time `gorm:"index"`
	DurationMS int64
	Success    bool   `gorm:"default:false"`
	Error      string `gorm:"type:text"`

	// Per-element problems logged while the run executed.
	Warnings    int            `gorm:"default:0"`
	Errors      int            `gorm:"default:0"`
	Diagnostics datatypes.JSON `gorm:"type:json"`

	Files []RunFile `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
}

// RunFile is a file touched by a run.
type RunFile struct {
	ID     uint   `gorm:"primaryKey;autoIncrement"`
	RunID  string `gorm:"type:varchar(40);not null;index"`
	Path   string `gorm:"type:varchar(1024);not null"`
	Role   string `gorm:"type:varchar(10)"`
	Action string `gorm:"type:varchar(10)"`
	Bytes  int
	Digest string `gorm:"type:varchar(64)"` // SHA256 of the content
}

// TableName customizations for cleaner names
func (Run) TableName() string     { return "runs" }
func (RunFile) TableName() string { return "run_files" }
