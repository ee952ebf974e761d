package enums

import "testing"

func TestProposalStatusAcceptable(t *testing.T) {
	cases := map[ProposalStatus]bool{
		ProposalStatusDraft:    true,
		ProposalStatusSent:     true,
		ProposalStatusAccepted: true,
		ProposalStatusRejected: false,
		ProposalStatusExpired:  false,
	}
	for status, want := range cases {
		if got := status.Acceptable(); got != want {
			t.Fatalf("%s: expected acceptable=%v got %v", status, want, got)
		}
	}
}

func TestParseOrderEmailMode(t *testing.T) {
	mode, err := ParseOrderEmailMode("")
	if err != nil || mode != OrderEmailModePDF {
		t.Fatalf("expected empty mode to default to pdf, got %q err=%v", mode, err)
	}
	mode, err = ParseOrderEmailMode(" Both ")
	if err != nil || mode != OrderEmailModeBoth {
		t.Fatalf("expected both, got %q err=%v", mode, err)
	}
	if !mode.IncludesPDF() || !mode.IncludesPlain() {
		t.Fatalf("both should include pdf and plain")
	}
	if OrderEmailModePlain.IncludesPDF() {
		t.Fatalf("plain should not include pdf")
	}
	if _, err := ParseOrderEmailMode("fax"); err == nil {
		t.Fatalf("expected unknown mode to fail")
	}
}

func TestParseUserRole(t *testing.T) {
	if _, err := ParseUserRole("admin"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseUserRole("owner"); err == nil {
		t.Fatalf("expected unknown role to fail")
	}
}
