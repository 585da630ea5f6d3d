package grants

// adminPermissions is the full administrative grant list, assigned locally to
// administrative sessions without a network round-trip.
//
//nolint:gochecknoglobals
var adminPermissions = []string{
	"system:user:view",
	"system:role:view",
	"system:permission:view",
	"system:user:add",
	"system:user:edit",
	"system:user:delete",
	"system:role:add",
	"system:role:edit",
	"system:role:delete",
	"system:permission:add",
	"system:permission:edit",
	"system:permission:delete",
	"system:user:list",
	"system:role:list",
	"system:permission:list",
}

//nolint:gochecknoglobals
var adminRoles = []string{"admin"}
