package rbac

// Role names as issued by the identity provider. Keep these stable; they are part of auth contracts.
const (
	RoleQualityAssurance = "quality_assurance_specialist"
	RoleStudyManager     = "study_manager"
	RoleSuperAdmin       = "super_admin"
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }
