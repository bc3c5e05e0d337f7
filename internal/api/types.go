package api

import "encoding/json"

// Role is a custom RBAC role as returned by the roles API.
type Role struct {
	ID          string
	Name        string
	Description string
}

// UnmarshalJSON accepts both "id" and "role_id" for the identifier,
// and tolerates numeric identifiers.
func (r *Role) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          json.RawMessage `json:"id"`
		RoleID      json.RawMessage `json:"role_id"`
		Name        string          `json:"name"`
		Description string          `json:"description"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Name = raw.Name
	r.Description = raw.Description
	r.ID = stringValue(raw.ID)
	if r.ID == "" {
		r.ID = stringValue(raw.RoleID)
	}
	return nil
}

// stringValue renders a scalar JSON value as a string. Strings lose
// their quotes, numbers keep their digits, everything else is "".
func stringValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// decodeList unwraps a JSON array that may arrive bare or under one of
// the given envelope keys. The second return value is false when the
// payload matches none of the accepted shapes.
func decodeList(data []byte, keys ...string) ([]json.RawMessage, bool) {
	var bare []json.RawMessage
	if err := json.Unmarshal(data, &bare); err == nil {
		return bare, true
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, false
	}
	for _, key := range keys {
		raw, ok := envelope[key]
		if !ok {
			continue
		}
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err == nil {
			return list, true
		}
	}
	return nil, false
}

// scopeKeys is the precedence order for pulling an identifier out of
// an object-shaped scope entry.
var scopeKeys = []string{"scope", "name", "permission", "id", "slug"}

// ExtractScopeNames flattens raw scope entries into identifier strings.
// Plain strings pass through. Object entries yield the first of scope,
// name, permission, id, slug that holds a scalar value. Entries that
// produce no identifier are returned in skipped so callers can report
// or preserve them.
func ExtractScopeNames(raw []json.RawMessage) (names []string, skipped []json.RawMessage) {
	for _, entry := range raw {
		var s string
		if err := json.Unmarshal(entry, &s); err == nil {
			names = append(names, s)
			continue
		}

		var obj map[string]json.RawMessage
		if err := json.Unmarshal(entry, &obj); err != nil {
			skipped = append(skipped, entry)
			continue
		}
		found := false
		for _, key := range scopeKeys {
			if v, ok := obj[key]; ok {
				if name := stringValue(v); name != "" {
					names = append(names, name)
					found = true
					break
				}
			}
		}
		if !found {
			skipped = append(skipped, entry)
		}
	}
	return names, skipped
}
