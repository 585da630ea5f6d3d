package models

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Two generations of the back office serialize grants differently: the older one
// returns bare identifier lists (["stock:list:view"]), the newer one returns record
// lists ([{"code": "stock:list:view"}]). Both shapes remain in production, so the
// lists below accept either and normalize to plain identifiers.

// PermissionList is a normalized list of permission codes.
type PermissionList []string

func (l *PermissionList) UnmarshalJSON(raw []byte) error {
	refs, err := decodeRefs(raw, "code")
	if err != nil {
		return errors.Wrap(err, "permissions")
	}

	*l = refs
	return nil
}

// RoleList is a normalized list of role names.
type RoleList []string

func (l *RoleList) UnmarshalJSON(raw []byte) error {
	refs, err := decodeRefs(raw, "name")
	if err != nil {
		return errors.Wrap(err, "roles")
	}

	*l = refs
	return nil
}

func decodeRefs(raw []byte, field string) ([]string, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errors.Wrap(err, "not a list")
	}

	refs := make([]string, 0, len(items))
	for _, item := range items {
		var ident string
		if err := json.Unmarshal(item, &ident); err == nil {
			if ident != "" {
				refs = append(refs, ident)
			}
			continue
		}

		var record map[string]json.RawMessage
		if err := json.Unmarshal(item, &record); err != nil {
			return nil, errors.New("entry is neither an identifier nor a record")
		}
		if err := json.Unmarshal(record[field], &ident); err != nil {
			return nil, errors.Wrapf(err, "record has no usable %q field", field)
		}
		if ident != "" {
			refs = append(refs, ident)
		}
	}

	return refs, nil
}

// Menu is a permission record flagged as a navigation menu entry.
type Menu struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// UserInfo is the payload of the user-info endpoint: the profile of the
// current session plus its grants.
type UserInfo struct {
	User
	Roles       RoleList       `json:"roles"`
	Permissions PermissionList `json:"permissions"`
	Menus       []Menu         `json:"menus,omitempty"`
}
