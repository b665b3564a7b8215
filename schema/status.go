package schema

import "time"

// WarehouseStatus reports the state of the warehouse store.
type WarehouseStatus struct {
	Backend      string           `json:"backend"`
	Connected    bool             `json:"connected"`
	TableSizes   map[string]int64 `json:"table_sizes"`
	LastIngestAt *time.Time       `json:"last_ingest_at,omitempty"`
}
