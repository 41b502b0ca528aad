// Copyright (c) 2026 vignitin
// apstra-commit-backup - commit-aware backup agent for Juniper Apstra
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import "testing"

func TestBlueprintString(t *testing.T) {
	bp := Blueprint{ID: "bp1", Name: "Production"}
	if got := bp.String(); got != "Production (bp1)" {
		t.Errorf("unexpected string %q", got)
	}
}

func TestCloneIsDeep(t *testing.T) {
	rev := "5"
	poll := "2026-08-28T12:00:00Z"
	original := NewGlobalState()
	original.LastPollTime = poll
	original.Blueprints["bp1"] = &BlueprintState{
		BlueprintID:    "bp1",
		BlueprintName:  "one",
		LastRevisionID: &rev,
		LastPollTime:   &poll,
	}

	clone := original.Clone()
	*clone.Blueprints["bp1"].LastRevisionID = "9"
	clone.Blueprints["bp2"] = &BlueprintState{BlueprintID: "bp2"}

	if *original.Blueprints["bp1"].LastRevisionID != "5" {
		t.Error("mutating the clone leaked into the original")
	}
	if _, ok := original.Blueprints["bp2"]; ok {
		t.Error("inserting into the clone leaked into the original")
	}
}

func TestGetReturnsFreshEntryWithoutInserting(t *testing.T) {
	st := NewGlobalState()
	bp := Blueprint{ID: "bp1", Name: "one"}

	entry := st.Get(bp)
	if entry.BlueprintID != "bp1" || entry.LastRevisionID != nil {
		t.Errorf("unexpected fresh entry %+v", entry)
	}
	if _, ok := st.Blueprints["bp1"]; ok {
		t.Error("Get must not insert into the map")
	}

	existing := &BlueprintState{BlueprintID: "bp1"}
	st.Blueprints["bp1"] = existing
	if st.Get(bp) != existing {
		t.Error("Get should return the existing entry")
	}
}
