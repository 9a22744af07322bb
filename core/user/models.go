package user

import "sort"

// Role is a user role carried in the access token.
type Role string

// Roles
const (
	RoleAdmin   Role = "admin"
	RoleCashier Role = "cashier"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
	RoleParent  Role = "parent"
)

// Capability is a single permission checked at the API boundary.
type Capability string

// Capabilities
const (
	CapManageFeeStructures Capability = "finance.structures.manage"
	CapViewFeeStructures   Capability = "finance.structures.view"
	CapAssignFees          Capability = "finance.fees.assign"
	CapRecordPayments      Capability = "finance.payments.record"
	CapViewLedgers         Capability = "finance.ledgers.view"
	CapViewOwnLedger       Capability = "finance.ledgers.view_own"
	CapManageStudents      Capability = "students.manage"
	CapViewStudents        Capability = "students.view"
)

type capabilitySet map[Capability]struct{}

func newCapabilitySet(caps ...Capability) capabilitySet {
	set := make(capabilitySet, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return set
}

var (
	AllCapabilities = []Capability{
		CapManageFeeStructures,
		CapViewFeeStructures,
		CapAssignFees,
		CapRecordPayments,
		CapViewLedgers,
		CapViewOwnLedger,
		CapManageStudents,
		CapViewStudents,
	}

	AllRoles = []Role{RoleAdmin, RoleCashier, RoleTeacher, RoleStudent, RoleParent}

	roleCapabilities = map[Role]capabilitySet{
		RoleAdmin: newCapabilitySet(AllCapabilities...),
		RoleCashier: newCapabilitySet(
			CapViewFeeStructures,
			CapAssignFees,
			CapRecordPayments,
			CapViewLedgers,
			CapViewStudents,
		),
		RoleTeacher: newCapabilitySet(CapViewStudents),
		RoleStudent: newCapabilitySet(CapViewOwnLedger),
		RoleParent:  newCapabilitySet(CapViewOwnLedger),
	}
)

// Can reports whether the role grants the capability. Unknown roles grant nothing.
func (r Role) Can(c Capability) bool {
	_, ok := roleCapabilities[r][c]
	return ok
}

func (r Role) IsValid() bool {
	_, ok := roleCapabilities[r]
	return ok
}

// User is the authenticated caller, as described by its access token.
type User struct {
	ID         string   `json:"id"`
	Username   string   `json:"username"`
	Email      string   `json:"email"`
	Roles      []Role   `json:"roles"`
	StudentIDs []string `json:"student_ids,omitempty"` // students linked to a student or parent account
}

// Can reports whether any of the user's roles grants the capability.
func (u User) Can(c Capability) bool {
	for _, r := range u.Roles {
		if r.Can(c) {
			return true
		}
	}
	return false
}

// IsLinkedTo reports whether the student is one of the user's own students.
func (u User) IsLinkedTo(studentID string) bool {
	ids := append([]string(nil), u.StudentIDs...)
	sort.Strings(ids)
	if i := sort.SearchStrings(ids, studentID); i < len(ids) {
		return ids[i] == studentID
	}
	return false
}

// CanViewLedgerOf reports whether the user may read the ledger of the given student.
func (u User) CanViewLedgerOf(studentID string) bool {
	return u.Can(CapViewLedgers) || (u.Can(CapViewOwnLedger) && u.IsLinkedTo(studentID))
}
