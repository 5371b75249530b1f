package domain

import "testing"

func i(n int64) *int64   { return &n }
func s(v string) *string { return &v }

func TestComputeStatus(t *testing.T) {
	cases := []struct {
		name string
		reg  *int64
		dec  *int64
		id   *string
		want string
	}{
		{"accepted", i(0), i(2), s("P000012345"), StatusActive},
		{"accepted late stage", i(3), i(2), s("P000012345"), StatusActive},
		{"accepted final stage", i(4), i(2), s("P000012345"), StatusActive},
		{"declined", i(3), i(3), nil, StatusDeclined},
		{"pending decision", i(0), i(1), nil, StatusPending},
		{"stalled on fields", i(1), nil, nil, StatusFieldMissing},
		{"stalled on mappings", i(2), nil, nil, StatusMappingMissing},
		{"unrecognized code", i(9), nil, nil, "Unrecognized status: 9"},
		{"unrecognized null", nil, i(2), nil, "Unrecognized status: null"},
		{"active without id falls through", i(0), i(2), nil, "Unrecognized status: 0"},
	}
	for _, c := range cases {
		if got := ComputeStatus(c.reg, c.dec, c.id); got != c.want {
			t.Errorf("%s: ComputeStatus = %q, want %q", c.name, got, c.want)
		}
	}
}

func TestApplicationStatusPredicates(t *testing.T) {
	var unknown ApplicationStatus
	if unknown.Known() {
		t.Errorf("zero status must be unknown")
	}
	if unknown.Resubmittable() {
		t.Errorf("unknown status is created, not resubmitted")
	}

	stalled := ApplicationStatus{RegistrationStage: i(1)}
	if !stalled.Known() || !stalled.Resubmittable() {
		t.Errorf("reg=1 without decision should be resubmittable")
	}

	stalledOnMappings := ApplicationStatus{RegistrationStage: i(2)}
	if !stalledOnMappings.Resubmittable() {
		t.Errorf("reg=2 without decision should be resubmittable")
	}

	dec := int64(2)
	settled := ApplicationStatus{RegistrationStage: i(0), DecisionStage: &dec, TargetID: s("P000000001")}
	if settled.Resubmittable() {
		t.Errorf("settled application must not be resubmitted")
	}
	label := StatusActive
	settled.Computed = &label
	if !settled.Active() {
		t.Errorf("settled accepted application should be active")
	}
}
