// Package smalltalk intercepts conversational non-queries before retrieval.
//
// Greetings, thanks, farewells, "how are you" and capability questions get a
// canned reply with no citations, so the pipeline never spends an embedding
// or generation call on them. Categories are checked in a fixed priority
// order; the first match wins. "hi there, how are you?" is a greeting, not a
// how-are-you, because the prefix check runs first.
package smalltalk

import "strings"

// Match rules differ per category: greetings and farewells must start the
// text, the rest match anywhere (capabilities also on exact equality, which
// substring matching subsumes).
var (
	greetings = []string{"hi", "hello", "hey", "good morning", "good evening"}
	gratitude = []string{"thanks", "thank you", "thx"}
	farewell  = []string{"bye", "goodbye", "see you", "take care"}
	howAreYou = []string{"how are you", "how's it going", "how are u"}

	capabilities = []string{
		"what can you do",
		"how can you help",
		"who are you",
		"what are you",
		"what is your role",
		"help",
		"i need help",
		"support",
		"assist me",
	}
)

// Canned replies per category.
const (
	greetingReply = "👋 Hi there! I'm glad you reached out. How can I support you today?"

	gratitudeReply = "💜 You're very welcome. Caring for a child with IDD is a big job—you're doing great."

	farewellReply = "👋 Take care! Remember, you can come back anytime with questions or just to talk."

	howAreYouReply = "😊 Thanks for asking! I'm here and ready to help with anything about caregiving or resources."

	capabilitiesReply = "🤖 I'm **IDDCareBot**, here to support caregivers of children with Down Syndrome and other intellectual or " +
		"developmental disabilities (IDD). I can:\n" +
		"- Share caregiver-friendly tips and strategies (not medical advice).\n" +
		"- Explain information from research in plain language.\n" +
		"- Suggest resources you can discuss with your child's providers.\n\n" +
		"How can I help you today?"
)

// Match classifies user input against the smalltalk categories.
// Returns the canned reply and true on a match; otherwise "" and false, in
// which case the query falls through to retrieval.
func Match(input string) (string, bool) {
	text := strings.ToLower(strings.TrimSpace(input))
	if text == "" {
		return "", false
	}

	if startsWithAny(text, greetings) {
		return greetingReply, true
	}
	if containsAny(text, gratitude) {
		return gratitudeReply, true
	}
	if startsWithAny(text, farewell) {
		return farewellReply, true
	}
	if containsAny(text, howAreYou) {
		return howAreYouReply, true
	}
	if containsAny(text, capabilities) {
		return capabilitiesReply, true
	}

	return "", false
}

func startsWithAny(text string, patterns []string) bool {
	for _, p := range patterns {
		if strings.HasPrefix(text, p) {
			return true
		}
	}
	return false
}

func containsAny(text string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
