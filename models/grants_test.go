package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionListBothWireShapes(t *testing.T) {
	legacy := []byte(`["stock:list:view","profit:stats:view"]`)
	record := []byte(`[{"code":"stock:list:view","id":1},{"code":"profit:stats:view","id":2}]`)

	var fromLegacy, fromRecord PermissionList
	require.NoError(t, json.Unmarshal(legacy, &fromLegacy))
	require.NoError(t, json.Unmarshal(record, &fromRecord))

	assert.Equal(t, fromLegacy, fromRecord)
	assert.Equal(t, PermissionList{"stock:list:view", "profit:stats:view"}, fromLegacy)
}

func TestRoleListUsesNameField(t *testing.T) {
	var roles RoleList
	require.NoError(t, json.Unmarshal([]byte(`[{"name":"operator","id":4},"admin"]`), &roles))
	assert.Equal(t, RoleList{"operator", "admin"}, roles)
}

func TestGrantListsSkipEmptyIdentifiers(t *testing.T) {
	var permissions PermissionList
	require.NoError(t, json.Unmarshal([]byte(`["","stock:list:view",{"code":""}]`), &permissions))
	assert.Equal(t, PermissionList{"stock:list:view"}, permissions)
}

func TestGrantListRejectsMalformedPayloads(t *testing.T) {
	var permissions PermissionList
	assert.Error(t, json.Unmarshal([]byte(`{"code":"x"}`), &permissions), "not a list")
	assert.Error(t, json.Unmarshal([]byte(`[42]`), &permissions), "numbers are not grants")

	var roles RoleList
	assert.Error(t, json.Unmarshal([]byte(`[{"code":"missing-name"}]`), &roles))
}

func TestUserInfoDecoding(t *testing.T) {
	payload := []byte(`{
		"id": 7, "username": "trader", "display_name": "Trader One",
		"roles": [{"name":"operator"}],
		"permissions": ["stock:list:view"],
		"menus": [{"id":1,"name":"stock","code":"stock:list:view"}]
	}`)

	var info UserInfo
	require.NoError(t, json.Unmarshal(payload, &info))

	assert.Equal(t, "trader", info.Username)
	assert.Equal(t, RoleList{"operator"}, info.Roles)
	assert.Equal(t, PermissionList{"stock:list:view"}, info.Permissions)
	require.Len(t, info.Menus, 1)
	assert.Equal(t, "stock:list:view", info.Menus[0].Code)
}
