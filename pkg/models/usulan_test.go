package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexString(t *testing.T) {
	var record UsulanRecord
	payload := `{"id":"abc","status_usulan":22,"usulan_data":{"data":{"no_peserta":12345}}}`
	require.NoError(t, json.Unmarshal([]byte(payload), &record))

	assert.Equal(t, "22", record.StatusUsulan.String())
	assert.Equal(t, "12345", record.NoPeserta())
}

func TestFlexStringNullAndAbsent(t *testing.T) {
	var record UsulanRecord
	payload := `{"id":"abc","status_usulan":null}`
	require.NoError(t, json.Unmarshal([]byte(payload), &record))

	assert.Equal(t, "", record.StatusUsulan.String())
	assert.Equal(t, "", record.NoPeserta())
}

func TestDisplayNameFallsBackToNested(t *testing.T) {
	record := UsulanRecord{
		UsulanData: UsulanData{Data: UsulanDetail{Nama: "Nested Name"}},
	}
	assert.Equal(t, "Nested Name", record.DisplayName())

	record.Nama = "Top Name"
	assert.Equal(t, "Top Name", record.DisplayName())
}

func TestParseTotal(t *testing.T) {
	assert.Equal(t, 42, ParseTotal(json.RawMessage(`42`)))
	assert.Equal(t, 42, ParseTotal(json.RawMessage(`"42"`)))
	assert.Equal(t, 0, ParseTotal(json.RawMessage(`"not a number"`)))
	assert.Equal(t, 0, ParseTotal(json.RawMessage(`null`)))
	assert.Equal(t, 0, ParseTotal(nil))
}
