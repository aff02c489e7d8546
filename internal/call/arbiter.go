package call

// ShouldInitiate resolves, for any pair of sessions, which side dials the
// peer connection. Session ids are server-assigned with a fixed-width
// monotonic prefix, so plain string comparison is a total order and for
// any distinct pair exactly one direction initiates. No negotiation round
// trip is needed to avoid glare: both sides evaluate this locally and
// agree.
//
// The greater id wins, which makes the late joiner (younger session) dial
// every participant already in the call while existing participants wait
// for its offers.
func ShouldInitiate(mySessionID, peerSessionID string) bool {
	return mySessionID > peerSessionID
}
