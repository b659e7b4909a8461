package entities

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// ValueChange is the uniform result of applying an action to one target.
// OldValue and NewValue are floats for adjustment actions, strings for state
// transitions and rendered messages.
type ValueChange struct {
	Target   string `json:"target"`
	OldValue any    `json:"old_value"`
	NewValue any    `json:"new_value"`
}

// HasChanges reports whether the action actually moved the value.
func (c ValueChange) HasChanges() bool {
	return !reflect.DeepEqual(c.OldValue, c.NewValue)
}

// MarshalChanges serializes a change list for the rule history Changes column.
func MarshalChanges(changes []ValueChange) (string, error) {
	if len(changes) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(changes)
	if err != nil {
		return "", fmt.Errorf("failed to marshal value changes: %w", err)
	}
	return string(b), nil
}
