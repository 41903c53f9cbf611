// Package share builds the receipt text sent to voters and the
// WhatsApp and SMS links that carry it.
package share

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/janneta/canvass/candidate"
	"github.com/janneta/canvass/voter"
)

// ErrInvalidPhone is returned for numbers that are not 10 digits long.
var ErrInvalidPhone = errors.New("phone number must have exactly 10 digits")

const (
	countryCode  = "91"
	phoneDigits  = 10
	notAvailable = "N/A"
)

// CleanPhone strips everything but ASCII digits from s.
func CleanPhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidPhone reports whether s holds exactly 10 digits once non-digits
// are removed.
func ValidPhone(s string) bool {
	return len(CleanPhone(s)) == phoneDigits
}

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}

// Message returns the receipt text for v. With a non-empty family the
// head voter and every member are listed in order.
func Message(info candidate.Info, v voter.Voter, family []voter.Member) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n", info.Party)
	fmt.Fprintf(&b, "*%s*\n\n", info.Name)
	if len(family) > 0 {
		b.WriteString("*कुटुंब तपशील*\n\n")
		writeFamilyEntry(&b, 1, v)
		for i, m := range family {
			writeFamilyEntry(&b, i+2, m.Voter())
		}
	} else {
		b.WriteString("*मतदार तपशील*\n\n")
		fmt.Fprintf(&b, "*नाव:* %s\n", v.Name)
		fmt.Fprintf(&b, "*मतदार आयडी:* %s\n", orNA(v.VoterID))
		fmt.Fprintf(&b, "*अनुक्रमांक:* %s\n", orNA(v.SerialNumber))
		fmt.Fprintf(&b, "*बूथ क्र.:* %s\n", orNA(v.BoothNumber))
		fmt.Fprintf(&b, "*लिंग:* %s\n", orNA(v.Gender))
		fmt.Fprintf(&b, "*वय:* %s\n", orNA(v.Age))
		fmt.Fprintf(&b, "*मतदान केंद्र:* %s\n\n", orNA(v.PollingStationAddress))
	}
	fmt.Fprintf(&b, "मी आपला *%s* माझी निशाणी *%s* या चिन्हावर मतदान करून मला प्रचंड बहुमतांनी विजय करा\n\n", info.Name, info.ElectionSymbol)
	return b.String()
}

func writeFamilyEntry(b *strings.Builder, n int, v voter.Voter) {
	fmt.Fprintf(b, "*%d) %s*\n", n, v.Name)
	fmt.Fprintf(b, "अनुक्रमांक: %s\n", orNA(v.SerialNumber))
	fmt.Fprintf(b, "मतदार आयडी: %s\n", orNA(v.VoterID))
	fmt.Fprintf(b, "बूथ क्र.: %s\n", orNA(v.BoothNumber))
	fmt.Fprintf(b, "लिंग: %s\n", orNA(v.Gender))
	fmt.Fprintf(b, "वय: %s\n", orNA(v.Age))
	fmt.Fprintf(b, "मतदान केंद्र: %s\n\n", orNA(v.PollingStationAddress))
}

// WithImage appends the link to an uploaded receipt image to text.
func WithImage(text, imageURL string) string {
	if imageURL == "" {
		return text
	}
	return text + "\n\n📄 Receipt Image: " + imageURL + "\n\n(Image will be displayed as a preview in WhatsApp)"
}

// escape encodes s for a query value with spaces as %20.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// WhatsAppURL returns the wa.me link opening a chat with the Indian
// number with text prefilled.
func WhatsAppURL(number, text string) (string, error) {
	n := CleanPhone(number)
	if len(n) != phoneDigits {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, number)
	}
	return "https://wa.me/" + countryCode + n + "?text=" + escape(text), nil
}

// SMSURL returns the sms: link for number with text as the body.
func SMSURL(number, text string) (string, error) {
	n := CleanPhone(number)
	if len(n) != phoneDigits {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, number)
	}
	return "sms:" + n + "?body=" + escape(text), nil
}
