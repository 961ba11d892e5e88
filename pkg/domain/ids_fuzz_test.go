package domain

import "testing"

// FuzzParseAgentID checks that parsing never panics on arbitrary input and
// that every accepted value round-trips through String.
func FuzzParseAgentID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("550e8400e29b41d4a716446655440000")

	f.Fuzz(func(t *testing.T, input string) {
		agentID, err := ParseAgentID(input)
		if err != nil {
			return
		}
		reparsed, err := ParseAgentID(agentID.String())
		if err != nil {
			t.Fatalf("accepted id %q did not round-trip: %v", input, err)
		}
		if reparsed != agentID {
			t.Fatalf("round-trip mismatch for %q", input)
		}
	})
}
