package http

import "testing"

func TestIPRateLimiterBurst(t *testing.T) {
	rl := NewIPRateLimiter(1, 3)

	for i := 0; i < 3; i++ {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d within burst was denied", i+1)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Error("request beyond burst was allowed")
	}
}

func TestIPRateLimiterPerIP(t *testing.T) {
	rl := NewIPRateLimiter(1, 1)

	if !rl.allow("10.0.0.1") {
		t.Fatal("first IP denied its burst")
	}
	if rl.allow("10.0.0.1") {
		t.Error("first IP exceeded its burst")
	}
	// A different client is not affected by the first one's exhaustion.
	if !rl.allow("10.0.0.2") {
		t.Error("second IP was throttled by the first IP's traffic")
	}
}
