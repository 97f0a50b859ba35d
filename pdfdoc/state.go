package pdfdoc

import (
	"regexp"
	"strings"
)

var indianStates = []string{
	"ANDHRA PRADESH", "ARUNACHAL PRADESH", "ASSAM", "BIHAR", "CHHATTISGARH",
	"GOA", "GUJARAT", "HARYANA", "HIMACHAL PRADESH", "JHARKHAND",
	"KARNATAKA", "KERALA", "MADHYA PRADESH", "MAHARASHTRA", "MANIPUR",
	"MEGHALAYA", "MIZORAM", "NAGALAND", "ODISHA", "PUNJAB",
	"RAJASTHAN", "SIKKIM", "TAMIL NADU", "TELANGANA", "TRIPURA",
	"UTTAR PRADESH", "UTTARAKHAND", "WEST BENGAL",
	"DELHI", "JAMMU AND KASHMIR", "LADAKH", "PUDUCHERRY",
}

var (
	pinCodePattern  = regexp.MustCompile(`\b\d{6}\b`)
	segmentSplit    = regexp.MustCompile(`[,;\r\n]+`)
	segmentSuffixes = regexp.MustCompile(`(?i)\s*(DIST|DISTRICT|CITY|STATE)\s*$`)
	whitespaceSplit = regexp.MustCompile(`\s+`)
)

func knownState(text string) string {
	upper := strings.ToUpper(text)
	for _, state := range indianStates {
		if strings.Contains(upper, state) {
			return state
		}
	}
	return ""
}

// ExtractState guesses the state of a free-text Indian address, upper-cased.
// Before a 6-digit PIN it looks for a known state, then the last address segment,
// then the last word. Without a PIN any known state anywhere is used.
func ExtractState(address string) string {
	address = strings.TrimSpace(address)
	if address == "" {
		return ""
	}
	if loc := pinCodePattern.FindStringIndex(address); loc != nil {
		before := strings.TrimSpace(address[:loc[0]])
		if state := knownState(before); state != "" {
			return state
		}
		parts := segmentSplit.Split(before, -1)
		for i := len(parts) - 1; i >= 0; i-- {
			last := strings.TrimSpace(segmentSuffixes.ReplaceAllString(strings.TrimSpace(parts[i]), ""))
			if last != "" {
				return strings.ToUpper(last)
			}
		}
		words := whitespaceSplit.Split(before, -1)
		if last := strings.TrimSpace(words[len(words)-1]); len(last) > 2 {
			return strings.ToUpper(last)
		}
	}
	return knownState(address)
}
