package store

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	colID        = "id"
	colStatus    = "status"
	colData      = "data"
	colVersion   = "version"
	colSessionID = "session_id"
	colKind      = "kind"
	colPayload   = "payload"
	colCreatedAt = "created_at"
	colUpdatedAt = "updated_at"
)

var (
	// sessionsColumns holds one row per session. The full record lives in
	// data; status is duplicated for ad-hoc queries.
	sessionsColumns = []*schema.Column{
		{Name: colID, Type: field.TypeString, Size: 64},
		{Name: colStatus, Type: field.TypeString, Size: 32},
		{Name: colData, Type: field.TypeJSON},
		{Name: colVersion, Type: field.TypeInt64},
		{Name: colCreatedAt, Type: field.TypeTime},
		{Name: colUpdatedAt, Type: field.TypeTime},
	}
	sessionsTable = &schema.Table{
		Name:       "sessions",
		Columns:    sessionsColumns,
		PrimaryKey: []*schema.Column{sessionsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "session_status", Columns: []*schema.Column{sessionsColumns[1]}},
		},
	}

	// eventsColumns is the append-only lifecycle log. The autoincrement
	// id orders events.
	eventsColumns = []*schema.Column{
		{Name: colID, Type: field.TypeInt64, Increment: true},
		{Name: colSessionID, Type: field.TypeString, Size: 64},
		{Name: colKind, Type: field.TypeString, Size: 32},
		{Name: colPayload, Type: field.TypeJSON, Nullable: true},
		{Name: colCreatedAt, Type: field.TypeTime},
	}
	eventsTable = &schema.Table{
		Name:       "session_events",
		Columns:    eventsColumns,
		PrimaryKey: []*schema.Column{eventsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "session_event_session_id", Columns: []*schema.Column{eventsColumns[1]}},
		},
	}

	tables = []*schema.Table{sessionsTable, eventsTable}
)
