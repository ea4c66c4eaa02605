package sender

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	authErr := &SendError{Kind: KindAuth, Err: errors.New("535 bad credentials")}
	connErr := &SendError{Kind: KindConnection, Err: errors.New("dial tcp: refused")}

	if got := Classify(authErr); got != KindAuth {
		t.Errorf("Classify(auth) = %v", got)
	}
	if got := Classify(fmt.Errorf("sending: %w", connErr)); got != KindConnection {
		t.Errorf("Classify(wrapped conn) = %v", got)
	}
	if got := Classify(errors.New("something else")); got != KindUnknown {
		t.Errorf("Classify(plain) = %v", got)
	}
	if got := Classify(nil); got != KindUnknown {
		t.Errorf("Classify(nil) = %v", got)
	}
}
