package bank

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"companion-billing/internal/domain/model"
	"companion-billing/internal/domain/ports/adapter"
)

var _ adapter.TransferInstructions = (*VietQR)(nil)

// EMVCo merchant-presented QR fields used by NAPAS 247 (VietQR).
const (
	napasGUID           = "A000000727"
	serviceToAccount    = "QRIBFTTA"
	currencyVND         = "704"
	countryVN           = "VN"
	maxDescriptionBytes = 25
)

// VietQR renders NAPAS VietQR payloads and bank app deeplinks.
type VietQR struct {
	DeeplinkBanks []string
}

func NewVietQR(deeplinkBanks []string) *VietQR {
	return &VietQR{DeeplinkBanks: deeplinkBanks}
}

func tlv(id, value string) string {
	return fmt.Sprintf("%s%02d%s", id, len(value), value)
}

// QRPayload builds a dynamic QR (point of initiation 12) that pre-fills
// account, amount and description.
func (v *VietQR) QRPayload(acc model.BankAccount, amount int64, description string) (string, error) {
	if len(acc.BankBIN) != 6 || acc.AccountNumber == "" {
		return "", errors.New("vietqr: bank BIN and account number are required")
	}
	if len(acc.AccountNumber) > 19 {
		return "", errors.New("vietqr: account number too long")
	}
	if amount <= 0 {
		return "", errors.New("vietqr: amount must be positive")
	}
	desc := sanitizeDescription(description)

	beneficiary := tlv("00", acc.BankBIN) + tlv("01", acc.AccountNumber)
	merchant := tlv("00", napasGUID) + tlv("01", beneficiary) + tlv("02", serviceToAccount)

	var b strings.Builder
	b.WriteString(tlv("00", "01"))
	b.WriteString(tlv("01", "12"))
	b.WriteString(tlv("38", merchant))
	b.WriteString(tlv("53", currencyVND))
	b.WriteString(tlv("54", strconv.FormatInt(amount, 10)))
	b.WriteString(tlv("58", countryVN))
	if desc != "" {
		b.WriteString(tlv("62", tlv("08", desc)))
	}
	b.WriteString("6304")
	b.WriteString(fmt.Sprintf("%04X", crc16CCITT([]byte(b.String()))))
	return b.String(), nil
}

// Deeplinks returns one vietqr.io app link per configured bank.
func (v *VietQR) Deeplinks(acc model.BankAccount, amount int64, description string) []model.BankDeeplink {
	out := make([]model.BankDeeplink, 0, len(v.DeeplinkBanks))
	for _, app := range v.DeeplinkBanks {
		q := url.Values{}
		q.Set("app", app)
		q.Set("ba", acc.AccountNumber+"@"+acc.BankBIN)
		q.Set("am", strconv.FormatInt(amount, 10))
		q.Set("tn", sanitizeDescription(description))
		out = append(out, model.BankDeeplink{
			BankID:      app,
			DeeplinkURL: "https://dl.vietqr.io/pay?" + q.Encode(),
		})
	}
	return out
}

// sanitizeDescription keeps ASCII letters, digits and spaces; banks reject the rest.
func sanitizeDescription(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' ' {
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if len(out) > maxDescriptionBytes {
		out = out[:maxDescriptionBytes]
	}
	return out
}

// crc16CCITT is CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF) as EMVCo requires.
func crc16CCITT(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, c := range data {
		crc ^= uint16(c) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
