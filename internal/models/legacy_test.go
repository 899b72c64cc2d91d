package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeStatusLegacyString(t *testing.T) {
	st, err := DecodeStatus([]byte(`"Frei"`))
	require.NoError(t, err)
	require.Equal(t, PhaseFree, st.Phase)
	require.Nil(t, st.Holder)
	require.Nil(t, st.Handoff)
}

func TestDecodeStatusLegacyObjectBusy(t *testing.T) {
	st, err := DecodeStatus([]byte(`{"uid":"u7","name":"Clara"}`))
	require.NoError(t, err)
	require.Equal(t, PhaseBusy, st.Phase)
	require.NotNil(t, st.Holder)
	require.Equal(t, "u7", st.Holder.UserID)
	require.Equal(t, "Clara", st.Holder.DisplayName)
	require.NoError(t, st.Validate())
}

func TestDecodeStatusLegacyObjectFree(t *testing.T) {
	st, err := DecodeStatus([]byte(`{"uid":"","name":"Frei"}`))
	require.NoError(t, err)
	require.Equal(t, PhaseFree, st.Phase)
	require.Nil(t, st.Holder)
}

func TestDecodeStatusCanonical(t *testing.T) {
	raw := []byte(`{
		"phase": "paused",
		"paused_handoff": {
			"previous": {"uid":"u1","name":"Anna"},
			"next": {"id":"e9","uid":"u2","name":"Ben"}
		},
		"version": 12
	}`)
	st, err := DecodeStatus(raw)
	require.NoError(t, err)
	require.Equal(t, PhasePaused, st.Phase)
	require.Equal(t, int64(12), st.Version)
	require.Equal(t, "e9", st.Handoff.Next.EntryID)
	require.Equal(t, "u1", st.Handoff.Previous.UserID)
}

func TestDecodeStatusEmpty(t *testing.T) {
	st, err := DecodeStatus(nil)
	require.NoError(t, err)
	require.Equal(t, PhaseFree, st.Phase)
}
