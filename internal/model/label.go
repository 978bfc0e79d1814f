package model

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeLabel prepares an upstream display name for reports and the ledger.
// Names arrive in mixed Unicode forms (decomposed accents are common in
// artist names), so they are NFC-normalised and whitespace-collapsed.
func NormalizeLabel(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}
