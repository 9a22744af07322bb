package user

import "testing"

func TestRole_Can(t *testing.T) {
	tests := []struct {
		name string
		role Role
		cap  Capability
		want bool
	}{
		{name: "admin manages structures", role: RoleAdmin, cap: CapManageFeeStructures, want: true},
		{name: "admin views own ledger", role: RoleAdmin, cap: CapViewOwnLedger, want: true},
		{name: "cashier records payments", role: RoleCashier, cap: CapRecordPayments, want: true},
		{name: "cashier cannot manage structures", role: RoleCashier, cap: CapManageFeeStructures},
		{name: "cashier cannot manage students", role: RoleCashier, cap: CapManageStudents},
		{name: "teacher views students", role: RoleTeacher, cap: CapViewStudents, want: true},
		{name: "teacher cannot record payments", role: RoleTeacher, cap: CapRecordPayments},
		{name: "student views own ledger", role: RoleStudent, cap: CapViewOwnLedger, want: true},
		{name: "student cannot view all ledgers", role: RoleStudent, cap: CapViewLedgers},
		{name: "parent views own ledger", role: RoleParent, cap: CapViewOwnLedger, want: true},
		{name: "unknown role", role: Role("janitor"), cap: CapViewStudents},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.role.Can(tt.cap); got != tt.want {
				t.Errorf("Role(%q).Can(%q) = %v, want %v", tt.role, tt.cap, got, tt.want)
			}
		})
	}
}

func TestUser_CanViewLedgerOf(t *testing.T) {
	tests := []struct {
		name      string
		usr       User
		studentID string
		want      bool
	}{
		{name: "no roles", usr: User{}, studentID: "s1"},
		{name: "cashier any student", usr: User{Roles: []Role{RoleCashier}}, studentID: "s1", want: true},
		{name: "student self", usr: User{Roles: []Role{RoleStudent}, StudentIDs: []string{"s1"}}, studentID: "s1", want: true},
		{name: "student other", usr: User{Roles: []Role{RoleStudent}, StudentIDs: []string{"s1"}}, studentID: "s2"},
		{name: "parent of two", usr: User{Roles: []Role{RoleParent}, StudentIDs: []string{"s3", "s2"}}, studentID: "s2", want: true},
		{name: "linked but no role", usr: User{Roles: []Role{RoleTeacher}, StudentIDs: []string{"s1"}}, studentID: "s1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.usr.CanViewLedgerOf(tt.studentID); got != tt.want {
				t.Errorf("CanViewLedgerOf() = %v, want %v", got, tt.want)
			}
		})
	}
}
