package sqlstore

import (
	"strconv"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// userHandlers wires the users table into go-repository-bun. Users are keyed
// by an integer sequence, so the uuid hooks are inert and lookups go through
// GetIdentifierValue.
func userHandlers() repository.ModelHandlers[*userRecord] {
	return repository.ModelHandlers[*userRecord]{
		NewRecord: func() *userRecord {
			return &userRecord{}
		},
		GetID: func(*userRecord) uuid.UUID {
			return uuid.Nil
		},
		SetID: func(*userRecord, uuid.UUID) {},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *userRecord) string {
			if record == nil || record.ID == 0 {
				return ""
			}
			return strconv.FormatInt(record.ID, 10)
		},
	}
}
