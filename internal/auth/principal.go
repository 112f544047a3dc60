package auth

// Roles known to the system.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// Principal is the resolved identity a request acts as. Authorization logic
// depends only on this struct, never on how the token was verified.
type Principal struct {
	UserID           string
	Role             string
	Name             string
	Email            string
	StudentID        string   // set for student accounts
	AssignedSubjects []string // subject ids, set for teacher accounts
}

// IsAssigned reports membership in the teacher's assigned-subject set.
func (p Principal) IsAssigned(subjectID string) bool {
	for _, id := range p.AssignedSubjects {
		if id == subjectID {
			return true
		}
	}
	return false
}
