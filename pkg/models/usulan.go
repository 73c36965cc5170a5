package models

import (
	"encoding/json"
	"strconv"
	"time"
)

// FlexString decodes JSON values that upstream sometimes encodes as a string
// and sometimes as a bare number. Absent and null both decode to "".
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string {
	return string(f)
}

// UsulanDetail is the nested payload block carrying the participant number.
type UsulanDetail struct {
	NoPeserta FlexString `json:"no_peserta,omitempty"`
	Nama      string     `json:"nama,omitempty"`
}

// UsulanData wraps the nested detail block as the upstream API ships it.
type UsulanData struct {
	Data UsulanDetail `json:"data,omitempty"`
}

// UsulanRecord is one personnel-process entry from the monitoring endpoint.
// All fields are optional upstream; absent or null values decode to "".
type UsulanRecord struct {
	ID                     string     `json:"id,omitempty"`
	NIP                    string     `json:"nip,omitempty"`
	Nama                   string     `json:"nama,omitempty"`
	StatusUsulan           FlexString `json:"status_usulan,omitempty"`
	JenisFormasiNama       string     `json:"jenis_formasi_nama,omitempty"`
	TglUsulan              string     `json:"tgl_usulan,omitempty"`
	TglPengirimanKelayanan string     `json:"tgl_pengiriman_kelayanan,omitempty"`
	UsulanData             UsulanData `json:"usulan_data,omitempty"`
}

// NoPeserta returns the participant number from the nested block.
func (r *UsulanRecord) NoPeserta() string {
	return r.UsulanData.Data.NoPeserta.String()
}

// DisplayName returns the top-level name, falling back to the nested one.
func (r *UsulanRecord) DisplayName() string {
	if r.Nama != "" {
		return r.Nama
	}
	return r.UsulanData.Data.Nama
}

// DownloadTask is one unit of work for the attachment fetch pool.
type DownloadTask struct {
	ItemID          string
	NoPeserta       string
	DestinationPath string
	Title           string
}

// DownloadResult is the outcome of one download task.
type DownloadResult struct {
	NoPeserta string
	Saved     bool
	DriveURL  string
}

// RunStatus classifies a completed run cycle.
type RunStatus string

const (
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// RunSummary aggregates the outcome of one scheduler cycle.
type RunSummary struct {
	RunID          string        `json:"run_id"`
	Status         RunStatus     `json:"status"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at"`
	RecordsFetched int           `json:"records_fetched"`
	RowsWritten    int           `json:"rows_written"`
	Duplicates     int           `json:"duplicates"`
	GapFilled      int           `json:"gap_filled"`
	NotFound       int           `json:"not_found"`
	Merged         int           `json:"merged"`
	DocumentsSaved int           `json:"documents_saved"`
	DocumentsTotal int           `json:"documents_total"`
	Duration       time.Duration `json:"duration"`
	Error          string        `json:"error,omitempty"`
}

// ParseTotal tolerates meta totals encoded as number or string.
func ParseTotal(raw json.RawMessage) int {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, convErr := strconv.Atoi(s); convErr == nil {
			return v
		}
	}
	return 0
}
