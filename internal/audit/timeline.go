package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TrailFilters menampung filter dasar untuk audit trail.
type TrailFilters struct {
	Model    string
	RecordID string
	UserID   int64
	Action   Action
	From     time.Time
	To       time.Time
	Page     int
	PageSize int
}

// Record mewakili satu baris audit_logs yang sudah tersimpan.
type Record struct {
	ID       uuid.UUID       `json:"id"`
	Action   Action          `json:"action"`
	Model    string          `json:"model"`
	RecordID string          `json:"recordId"`
	UserID   int64           `json:"userId"`
	UserName string          `json:"userName"`
	Changes  json.RawMessage `json:"changes"`
	At       time.Time       `json:"at"`
}

// PagingInfo menyimpan metadata pagination sederhana.
type PagingInfo struct {
	Page     int  `json:"page"`
	HasNext  bool `json:"hasNext"`
	PageSize int  `json:"pageSize"`
	PrevPage int  `json:"prevPage,omitempty"`
	NextPage int  `json:"nextPage,omitempty"`
}

// Result membungkus hasil trail dengan informasi paging.
type Result struct {
	Rows   []Record   `json:"rows"`
	Paging PagingInfo `json:"paging"`
}
