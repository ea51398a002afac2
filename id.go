package treasury

import "github.com/xraph/treasury/id"

// ID is the TypeID used for call and batch identifiers.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
