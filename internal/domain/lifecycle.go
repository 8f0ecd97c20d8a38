package domain

import "time"

// Lifecycle is the soft-delete state of a catalog record: Active, or Deleted
// at a specific instant. The zero value is Active.
type Lifecycle struct {
	deletedAt time.Time
}

func Active() Lifecycle {
	return Lifecycle{}
}

// Deleted returns the lifecycle of a record removed at the given time. A zero
// time is replaced by the Unix epoch so the state stays tagged as deleted.
func Deleted(at time.Time) Lifecycle {
	if at.IsZero() {
		at = time.Unix(0, 0).UTC()
	}
	return Lifecycle{deletedAt: at.UTC()}
}

func (l Lifecycle) IsDeleted() bool {
	return !l.deletedAt.IsZero()
}

func (l Lifecycle) DeletedAt() (time.Time, bool) {
	return l.deletedAt, l.IsDeleted()
}

// lifecycleWire is the stored shape: a flag plus a nullable timestamp.
type lifecycleWire struct {
	IsDeleted bool       `json:"isDeleted"`
	DeletedAt *time.Time `json:"deletedAt"`
}

func (l Lifecycle) wire() lifecycleWire {
	if !l.IsDeleted() {
		return lifecycleWire{}
	}
	at := l.deletedAt
	return lifecycleWire{IsDeleted: true, DeletedAt: &at}
}

func (w lifecycleWire) lifecycle() Lifecycle {
	if !w.IsDeleted {
		return Active()
	}
	if w.DeletedAt == nil {
		return Deleted(time.Time{})
	}
	return Deleted(*w.DeletedAt)
}
