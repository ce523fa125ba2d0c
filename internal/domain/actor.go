package domain

// Actor is the already-authenticated identity driving a workflow request.
// Authentication and the wider permission matrix live outside this service;
// the workflow only needs who acted and in what role.
type Actor struct {
	UserID string
	Role   UserRole
}
