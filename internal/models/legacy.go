package models

import (
	"encoding/json"
	"fmt"
)

// Older deployments persisted the status in two pre-phase shapes: a bare
// string ("Frei") meaning the machine is free, and an object {uid, name}
// without a phase field where a non-empty uid meant busy. DecodeStatus
// normalizes all of them into the canonical MachineStatus at read time so
// the state machine never has to branch on schema version.
func DecodeStatus(raw []byte) (MachineStatus, error) {
	if len(raw) == 0 {
		return FreeStatus(), nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		// Legacy string form. Any string meant "free"; "Frei" was the
		// only value ever written.
		return FreeStatus(), nil
	}

	var probe struct {
		Phase *Phase `json:"phase"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return MachineStatus{}, fmt.Errorf("decode status: %w", err)
	}

	if probe.Phase == nil {
		var legacy struct {
			UID     string `json:"uid"`
			Name    string `json:"name"`
			Version int64  `json:"version"`
		}
		if err := json.Unmarshal(raw, &legacy); err != nil {
			return MachineStatus{}, fmt.Errorf("decode legacy status: %w", err)
		}
		if legacy.UID == "" {
			s := FreeStatus()
			s.Version = legacy.Version
			return s, nil
		}
		return MachineStatus{
			Phase:   PhaseBusy,
			Holder:  &UserRef{UserID: legacy.UID, DisplayName: legacy.Name},
			Version: legacy.Version,
		}, nil
	}

	var s MachineStatus
	if err := json.Unmarshal(raw, &s); err != nil {
		return MachineStatus{}, fmt.Errorf("decode status: %w", err)
	}
	return s, nil
}
