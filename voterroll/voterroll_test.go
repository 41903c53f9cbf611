package voterroll

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/janneta/canvass/voter"
	"go.uber.org/zap"
)

const sheet = `id,voterId,name,serialNumber,boothNumber,gender,age,pollingStationAddress,whatsapp,phone
V1,ABC1234567,Ravi,12,4,M,41,"ZP School, Room 2",9876543210,
,XYZ7654321,Seema,13,4,F,38,"ZP School, Room 2",,
V1,ABC1234567,Ravi Patil,12,4,M,41,"ZP School, Room 2",9876543210,9123456789
,,nobody,,,,,,,
`

func TestRead(t *testing.T) {
	rows, err := Read(strings.NewReader(sheet), Options{})
	if err != nil {
		t.Fatalf("expected err nil, got %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	if rows[0].PollingStationAddress != "ZP School, Room 2" {
		t.Errorf("expected quoted address, got %q", rows[0].PollingStationAddress)
	}
}

func TestReadLatin1(t *testing.T) {
	rows, err := Read(strings.NewReader("id;name\nV9;Jos\xe9\n"), Options{Comma: ';', Latin1: true})
	if err != nil {
		t.Fatalf("expected err nil, got %v", err)
	}
	if rows[0].Name != "José" {
		t.Errorf("expected José, got %q", rows[0].Name)
	}
}

func TestRemoveDuplicates(t *testing.T) {
	rows, err := Read(strings.NewReader(sheet), Options{})
	if err != nil {
		t.Fatalf("expected err nil, got %v", err)
	}
	got := RemoveDuplicates(rows, "sheet.csv", zap.NewNop().Sugar())
	want := []voter.Voter{
		{ID: "V1", VoterID: "ABC1234567", Name: "Ravi Patil", SerialNumber: "12", BoothNumber: "4", Gender: "M", Age: "41", PollingStationAddress: "ZP School, Room 2", WhatsApp: "9876543210", Phone: "9123456789"},
		{VoterID: "XYZ7654321", Name: "Seema", SerialNumber: "13", BoothNumber: "4", Gender: "F", Age: "38", PollingStationAddress: "ZP School, Room 2"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected voters (-want +got):\n%s", diff)
	}
}
