//go:build !integration

package bank

import (
	"strings"
	"testing"

	"companion-billing/internal/domain/model"
)

var testAccount = model.BankAccount{BankCode: "VCB", BankBIN: "970436", AccountNumber: "0011001234567", AccountName: "CB"}

func TestCRC16CCITT_KnownVector(t *testing.T) {
	// CRC-16/CCITT-FALSE check value
	if got := crc16CCITT([]byte("123456789")); got != 0x29B1 {
		t.Fatalf("crc = %04X, want 29B1", got)
	}
}

func TestVietQR_Payload(t *testing.T) {
	v := NewVietQR([]string{"vcb", "tcb"})
	p, err := v.QRPayload(testAccount, 99_000, "CBABCD2345")
	if err != nil {
		t.Fatalf("QRPayload: %v", err)
	}
	wantParts := []string{
		"000201",
		"010212",
		"0010A000000727",
		"0006970436",
		"01130011001234567",
		"0208QRIBFTTA",
		"5303704",
		"540599000",
		"5802VN",
		"62140810CBABCD2345",
	}
	for _, w := range wantParts {
		if !strings.Contains(p, w) {
			t.Errorf("payload %q missing %q", p, w)
		}
	}
	if !strings.HasPrefix(p[len(p)-8:], "6304") {
		t.Fatalf("payload must end with the CRC field: %q", p)
	}
	body := p[:len(p)-4]
	crc := p[len(p)-4:]
	if want := strings.ToUpper(hex4(crc16CCITT([]byte(body)))); crc != want {
		t.Fatalf("crc = %s, want %s", crc, want)
	}
}

func hex4(v uint16) string {
	const digits = "0123456789ABCDEF"
	return string([]byte{digits[v>>12&0xF], digits[v>>8&0xF], digits[v>>4&0xF], digits[v&0xF]})
}

func TestVietQR_PayloadErrors(t *testing.T) {
	v := NewVietQR(nil)
	if _, err := v.QRPayload(model.BankAccount{AccountNumber: "1"}, 1, "x"); err == nil {
		t.Error("expected error without BIN")
	}
	if _, err := v.QRPayload(testAccount, 0, "x"); err == nil {
		t.Error("expected error for zero amount")
	}
}

func TestVietQR_Deeplinks(t *testing.T) {
	v := NewVietQR([]string{"vcb", "mb"})
	links := v.Deeplinks(testAccount, 99_000, "CB ABCD-2345")
	if len(links) != 2 || links[0].BankID != "vcb" || links[1].BankID != "mb" {
		t.Fatalf("links = %+v", links)
	}
	u := links[0].DeeplinkURL
	for _, w := range []string{"app=vcb", "am=99000", "ba=0011001234567%40970436", "tn=CB+ABCD2345"} {
		if !strings.Contains(u, w) {
			t.Errorf("deeplink %q missing %q", u, w)
		}
	}
}
