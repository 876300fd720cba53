package broadcast

// ShouldDiscard reports whether a bus envelope originated from this instance.
// Every instance subscribes to the channels it publishes on, so each publish
// loops back once; the loopback is dropped here and never reaches local
// delivery, which already happened synchronously at publish time.
func ShouldDiscard(envelopeOrigin, instanceID string) bool {
	return envelopeOrigin == instanceID
}
