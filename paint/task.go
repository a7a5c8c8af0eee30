package paint

import (
	"fmt"
	"time"
)

type TaskKind string

const (
	KindGenerate  TaskKind = "generate"
	KindUpscale   TaskKind = "upscale"
	KindVariation TaskKind = "variation"
	KindReset     TaskKind = "reset"
)

type TaskStatus string

const (
	StatusPending  TaskStatus = "pending"
	StatusFinished TaskStatus = "finished"
	StatusExpired  TaskStatus = "expired"
	StatusAborted  TaskStatus = "aborted"
)

type TaskMode string

const (
	ModeFast  TaskMode = "fast"
	ModeRelax TaskMode = "relax"
)

// Task is one submitted remote generation/operation request and its
// tracked lifecycle. A task only exists once the remote service has
// assigned it an ID; Pending is the single non-terminal status.
type Task struct {
	ID        string
	OwnerID   string
	Kind      TaskKind
	RawPrompt string
	Status    TaskStatus
	CreatedAt time.Time
	ExpiresAt time.Time

	// Populated only when Status is StatusFinished.
	ImgID  string
	ImgURL string
}

func (t Task) Terminal() bool {
	switch t.Status {
	case StatusFinished, StatusExpired, StatusAborted:
		return true
	default:
		return false
	}
}

func (t Task) String() string {
	return fmt.Sprintf("id=%s owner_id=%s kind=%s status=%s img_id=%s", t.ID, t.OwnerID, t.Kind, t.Status, t.ImgID)
}
