package authz

type ApproverDescription struct {
	GrantID        int64  `json:"grant_id,omitempty"`
	RoleType       string `json:"role_type"`
	ScopeKind      string `json:"scope_kind"`
	TargetID       int64  `json:"target_id,omitempty"`
	Label          string `json:"label"`
	IncludeSubtree bool   `json:"include_subtree,omitempty"`
	// Dangling marks grants whose target was deleted; they never match.
	Dangling bool `json:"dangling,omitempty"`
}

type EligibleApprover struct {
	IdentityID int64  `json:"identity_id"`
	FullName   string `json:"full_name"`
}

type ApproversResponse struct {
	RoleType  string                `json:"role_type"`
	Rules     []ApproverDescription `json:"rules"`
	Approvers []EligibleApprover    `json:"approvers"`
}

type CheckResponse struct {
	RoleType string   `json:"role_type"`
	Decision Decision `json:"decision"`
}
