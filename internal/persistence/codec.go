package persistence

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/petrijr/taskgraph/pkg/api"
)

// recordPayload is the gob form of a RunnerRecord used by key-value
// backends.
type recordPayload struct {
	Entity     uint64
	Graph      string
	TemplateID uint64
	NodeIndex  int
	StateTimer float64
	LastStatus string
	Blackboard []byte
}

// EncodeRecord serializes rec using encoding/gob.
func EncodeRecord(rec RunnerRecord) ([]byte, error) {
	payload := recordPayload{
		Entity:     uint64(rec.Entity),
		Graph:      rec.Graph,
		TemplateID: uint64(rec.State.TemplateID),
		NodeIndex:  rec.State.NodeIndex,
		StateTimer: rec.State.StateTimer,
		LastStatus: string(rec.State.LastStatus),
		Blackboard: rec.State.Blackboard,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeRecord reverses EncodeRecord.
func DecodeRecord(data []byte) (RunnerRecord, error) {
	if len(data) == 0 {
		return RunnerRecord{}, ErrRunnerNotFound
	}
	var payload recordPayload
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&payload); err != nil {
		return RunnerRecord{}, fmt.Errorf("decode runner record: %w", err)
	}
	return RunnerRecord{
		Entity: api.EntityID(payload.Entity),
		Graph:  payload.Graph,
		State: api.RunnerState{
			TemplateID: api.AssetID(payload.TemplateID),
			NodeIndex:  payload.NodeIndex,
			StateTimer: payload.StateTimer,
			LastStatus: api.TaskStatus(payload.LastStatus),
			Blackboard: payload.Blackboard,
		},
	}, nil
}
