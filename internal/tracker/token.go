package tracker

import "crypto/rand"

// tokenAlphabet has exactly 64 URL-safe symbols, so masking a random
// byte with 0x3f indexes it uniformly.
const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"

// tokenLength gives 64^12 possible tokens, effectively collision-free
// at the volumes a single-user tool produces.
const tokenLength = 12

// NewTrackingID returns a short, URL-safe, random tracking token.
func NewTrackingID() string {
	buf := make([]byte, tokenLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms.
		panic("tracker: reading random bytes: " + err.Error())
	}
	for i, b := range buf {
		buf[i] = tokenAlphabet[b&0x3f]
	}
	return string(buf)
}
