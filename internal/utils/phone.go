package utils

import (
	"strings"
)

// PhoneRules holds the dialing conventions used to compare phone numbers.
// They come from configuration rather than being fixed to one country.
type PhoneRules struct {
	CountryCode string // calling code without "+"
	LocalLength int    // national number length; 0 accepts any length
}

var phoneJunk = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "", "+", "", "\t", "")

// Normalize reduces raw to its national digits and the same digits prefixed
// with the calling code. A leading "00<cc>" or "<cc>" is removed only when
// what remains still looks like a national number, then leading zeros are
// dropped. ok is false when no digits remain.
func (r PhoneRules) Normalize(raw string) (local, withCC string, ok bool) {
	s := phoneJunk.Replace(strings.TrimSpace(raw))
	for _, c := range s {
		if c < '0' || c > '9' {
			return "", "", false
		}
	}
	cc := r.CountryCode
	if cc != "" {
		switch {
		case strings.HasPrefix(s, "00"+cc) && r.fits(len(s)-len(cc)-2):
			s = s[len(cc)+2:]
		case strings.HasPrefix(s, cc) && r.fits(len(s)-len(cc)):
			s = s[len(cc):]
		}
	}
	s = strings.TrimLeft(s, "0")
	if s == "" {
		return "", "", false
	}
	return s, cc + s, true
}

func (r PhoneRules) fits(n int) bool {
	return r.LocalLength <= 0 || n >= r.LocalLength
}

// Candidates lists the stored spellings a number may have been saved under.
func (r PhoneRules) Candidates(raw string) []string {
	local, withCC, ok := r.Normalize(raw)
	if !ok {
		return nil
	}
	out := []string{local, "0" + local}
	if r.CountryCode != "" {
		out = append(out, withCC, "+"+withCC, "00"+withCC)
	}
	return out
}

// E164 formats raw as "+<cc><national>", the form the gateways expect.
func (r PhoneRules) E164(raw string) string {
	_, withCC, ok := r.Normalize(raw)
	if !ok {
		return ""
	}
	return "+" + withCC
}

// Mask hides the middle of a number: "77****34".
func (r PhoneRules) Mask(raw string) string {
	local, _, ok := r.Normalize(raw)
	if !ok || len(local) < 4 {
		return "****"
	}
	return local[:2] + "****" + local[len(local)-2:]
}
