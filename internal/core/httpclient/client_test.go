package httpclient

import (
	"net/http"
	"testing"
	"time"
)

func TestNewOutbound_Timeouts(t *testing.T) {
	c := NewOutbound(0)
	if c.Timeout != 30*time.Second {
		t.Fatalf("default timeout=%v", c.Timeout)
	}
	c = NewOutbound(5 * time.Second)
	tr, ok := c.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("transport=%T", c.Transport)
	}
	if tr.ResponseHeaderTimeout != 5*time.Second || tr.Proxy == nil {
		t.Fatalf("transport not configured: %+v", tr)
	}
}
