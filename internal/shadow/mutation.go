package shadow

import (
	"fmt"

	"github.com/canonica-labs/geometa/internal/metastore"
)

// Action is what happened to a metadata row.
type Action string

const (
	Added   Action = "added"
	Updated Action = "updated"
	Deleted Action = "deleted"
)

// IsValid checks if the action is known.
func (a Action) IsValid() bool {
	switch a {
	case Added, Updated, Deleted:
		return true
	}
	return false
}

// Mutation is a change to the primary metadata store. Added and updated
// mutations carry the id of the row just saved as MetaIDs[0]; deleted
// mutations carry every removed row.
type Mutation struct {
	Action     Action
	ObjectType metastore.ObjectType
	MetaIDs    []int64
	ObjectID   int64
	Key        string
	Value      any
}

// Validate checks the fields every mutation needs.
func (m Mutation) Validate() error {
	if !m.Action.IsValid() {
		return fmt.Errorf("unknown action %q", m.Action)
	}
	if !m.ObjectType.IsValid() {
		return fmt.Errorf("unknown object type %q", m.ObjectType)
	}
	if m.Key == "" {
		return fmt.Errorf("meta key is required")
	}
	if m.ObjectID <= 0 {
		return fmt.Errorf("object id must be positive, got %d", m.ObjectID)
	}
	return nil
}

// Result classifies an Outcome.
type Result string

const (
	ResultUpserted Result = "upserted"
	ResultDeleted  Result = "deleted"
	ResultSkipped  Result = "skipped"
	ResultFailed   Result = "failed"
)

// Outcome reports what the synchronizer did with a mutation.
type Outcome struct {
	Result Result

	// Key is the key after mutation filters ran.
	Key string

	// WKT is the geometry text written on upsert.
	WKT string

	// MetaIDs are the source rows whose shadow rows were targeted.
	MetaIDs []int64

	// Affected is the number of shadow rows changed.
	Affected int64

	// Reason explains a skipped mutation.
	Reason string

	// Err is set when Result is ResultFailed.
	Err error
}

// Mirrored reports whether the shadow table now reflects the mutation.
func (o Outcome) Mirrored() bool {
	return o.Result == ResultUpserted || o.Result == ResultDeleted
}
