// Package safety scans user input for crisis language.
//
// The check is deliberately broad: case-insensitive substring matching, not
// word-boundary matching, so "NOT RESPONSIVE right now" still flags. False
// positives are acceptable; a missed escalation is the failure mode to avoid.
// The scan is pure and runs independently of retrieval so a retrieval failure
// or smalltalk short-circuit can never suppress it.
package safety

import "strings"

// redFlags are the crisis-indicator phrases that trigger escalation.
var redFlags = []string{
	"seizure",
	"blue lips",
	"unconscious",
	"severe chest pain",
	"difficulty breathing",
	"trouble breathing",
	"not responsive",
	"stopped breathing",
	"choking",
	"head injury",
	"severe bleeding",
	"suicidal",
	"ingested poison",
	"allergic reaction",
}

// CrisisMessage is prepended to any answer when the input is flagged.
const CrisisMessage = "This may be an emergency. I'm not a medical professional, but based on what you shared, " +
	"please contact local emergency services immediately or your child's clinician."

// NonDiagnosticReminder is the fixed guardrail line interpolated into every
// generation prompt.
const NonDiagnosticReminder = "I can provide general, caregiver-friendly information about Down syndrome and IDD. " +
	"I can't diagnose, prescribe, or replace professional care."

// Check reports whether text contains any crisis phrase. When flagged it
// returns the fixed crisis escalation message, otherwise an empty string.
func Check(text string) (bool, string) {
	t := strings.ToLower(text)
	for _, phrase := range redFlags {
		if strings.Contains(t, phrase) {
			return true, CrisisMessage
		}
	}
	return false, ""
}
