package viewmodels

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/entities/spreadsheet"
)

type ConnectionStatus struct {
	IsConnected bool       `json:"isConnected"`
	GoogleEmail *string    `json:"googleEmail"`
	ConnectedAt *time.Time `json:"connectedAt"`
}

type AuthURL struct {
	AuthURL string `json:"authUrl"`
}

type SheetListItem struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ModifiedTime time.Time `json:"modifiedTime"`
}

// Record is a data row rendered as a JSON object whose keys keep the sheet's
// column order. A repeated header keeps its first value.
type Record []spreadsheet.Cell

func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	seen := make(map[string]struct{}, len(r))
	for _, c := range r {
		if _, dup := seen[c.Header]; dup {
			continue
		}
		seen[c.Header] = struct{}{}
		if len(seen) > 1 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(c.Header)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(c.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type Preview struct {
	SpreadsheetName  string            `json:"spreadsheetName"`
	AvailableSheets  []string          `json:"availableSheets"`
	DetectedColumns  []string          `json:"detectedColumns"`
	SuggestedMapping map[string]string `json:"suggestedMapping"`
	SampleRows       []Record          `json:"sampleRows"`
	TotalRows        int               `json:"totalRows"`
}

type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
	Data  Record `json:"data,omitempty"`
}

type ImportResult struct {
	BatchID       string     `json:"batchId"`
	Status        string     `json:"status"`
	TotalRows     int        `json:"totalRows"`
	ImportedCount int        `json:"importedCount"`
	SkippedCount  int        `json:"skippedCount"`
	ErrorCount    int        `json:"errorCount"`
	Errors        []RowError `json:"errors"`
}

type ImportBatch struct {
	ID                string     `json:"id"`
	SourceType        string     `json:"sourceType"`
	SourceID          string     `json:"sourceId"`
	SourceName        string     `json:"sourceName"`
	Status            string     `json:"status"`
	DuplicateStrategy string     `json:"duplicateStrategy"`
	TotalRows         int        `json:"totalRows"`
	ImportedCount     int        `json:"importedCount"`
	SkippedCount      int        `json:"skippedCount"`
	ErrorCount        int        `json:"errorCount"`
	CreatedAt         time.Time  `json:"createdAt"`
	CompletedAt       *time.Time `json:"completedAt"`
}

// ImportBatchDetail adds the recorded mapping and stored row errors.
type ImportBatchDetail struct {
	ImportBatch
	ColumnMapping map[string]string `json:"columnMapping"`
	Errors        []RowError        `json:"errors"`
}
