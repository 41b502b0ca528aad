// Copyright (c) 2026 vignitin
// apstra-commit-backup - commit-aware backup agent for Juniper Apstra
// This source code is licensed under the MIT license found in the LICENSE file.

// Package model defines the core domain types shared across the agent:
// blueprints as reported by the Apstra controller, their configuration
// revisions, and the persisted per-blueprint polling state.
package model

import "fmt"

// Blueprint is one logical unit of fabric configuration managed by the
// controller. Identity is the controller-assigned ID; Name is a display
// label only and must never be used as a lookup key.
type Blueprint struct {
	ID       string `json:"id" mapstructure:"id"`
	Name     string `json:"name" mapstructure:"name"`
	Endpoint string `json:"endpoint" mapstructure:"endpoint"`
}

// String returns the "name (id)" representation used in log lines.
func (b Blueprint) String() string {
	return fmt.Sprintf("%s (%s)", b.Name, b.ID)
}

// Revision is a numbered configuration snapshot of a blueprint as reported
// by the controller's revisions endpoint. RevisionID is numeric but carried
// as a string on the wire; compare it as an integer, never lexically.
type Revision struct {
	RevisionID  string `json:"revision_id"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	User        string `json:"user,omitempty"`
}

// BlueprintState is the durable per-blueprint record: the last revision a
// successful backup covered and the last time the blueprint was polled.
// LastRevisionID is nil until the blueprint has been observed at least once.
type BlueprintState struct {
	BlueprintID    string  `json:"blueprint_id"`
	BlueprintName  string  `json:"blueprint_name"`
	LastRevisionID *string `json:"last_revision_id"`
	LastPollTime   *string `json:"last_poll_time"`
}

// GlobalState is the single persisted document mirroring the on-disk state
// file. Blueprints absent from the latest discovery keep their entries; the
// agent simply stops polling them.
type GlobalState struct {
	LastPollTime string                     `json:"last_poll_time,omitempty"`
	LastUpdated  string                     `json:"last_updated,omitempty"`
	Blueprints   map[string]*BlueprintState `json:"blueprints"`
}

// NewGlobalState returns an empty state document with an initialized
// blueprint map.
func NewGlobalState() *GlobalState {
	return &GlobalState{Blueprints: make(map[string]*BlueprintState)}
}

// Clone returns a deep copy. The poll loop mutates a working copy per cycle
// and commits it only after the backup decision is finalized.
func (s *GlobalState) Clone() *GlobalState {
	out := &GlobalState{
		LastPollTime: s.LastPollTime,
		LastUpdated:  s.LastUpdated,
		Blueprints:   make(map[string]*BlueprintState, len(s.Blueprints)),
	}
	for id, bs := range s.Blueprints {
		cp := *bs
		if bs.LastRevisionID != nil {
			v := *bs.LastRevisionID
			cp.LastRevisionID = &v
		}
		if bs.LastPollTime != nil {
			v := *bs.LastPollTime
			cp.LastPollTime = &v
		}
		out.Blueprints[id] = &cp
	}
	return out
}

// Get returns the state entry for a blueprint, or a fresh unobserved entry
// if none exists yet. The returned entry is not inserted into the map.
func (s *GlobalState) Get(bp Blueprint) *BlueprintState {
	if bs, ok := s.Blueprints[bp.ID]; ok {
		return bs
	}
	return &BlueprintState{BlueprintID: bp.ID, BlueprintName: bp.Name}
}
