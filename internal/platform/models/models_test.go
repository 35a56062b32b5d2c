package models

import "testing"

func TestTierAtLeast(t *testing.T) {
	tests := []struct {
		have, min Tier
		want      bool
	}{
		{TierPro, TierStarter, true},
		{TierStarter, TierPro, false},
		{TierEnterprise, TierEnterprise, true},
		{TierFree, TierFree, true},
		{Tier("gold"), TierFree, false},
	}
	for _, tt := range tests {
		if got := tt.have.AtLeast(tt.min); got != tt.want {
			t.Errorf("%s.AtLeast(%s) = %v, want %v", tt.have, tt.min, got, tt.want)
		}
	}
}

func TestEffectiveTier(t *testing.T) {
	var none *Subscription
	if none.EffectiveTier() != TierFree {
		t.Errorf("nil subscription should be free")
	}
	pastDue := &Subscription{Tier: TierPro, Status: SubscriptionPastDue}
	if pastDue.EffectiveTier() != TierFree {
		t.Errorf("past_due subscription should fall back to free")
	}
	trial := &Subscription{Tier: TierPro, Status: SubscriptionTrialing}
	if trial.EffectiveTier() != TierPro {
		t.Errorf("trialing subscription should keep its tier")
	}
}

func TestWaitlistTransitions(t *testing.T) {
	tests := []struct {
		from, to WaitlistStatus
		want     bool
	}{
		{WaitlistWaiting, WaitlistInvited, true},
		{WaitlistWaiting, WaitlistConverted, false},
		{WaitlistInvited, WaitlistConverted, true},
		{WaitlistConverted, WaitlistWaiting, false},
		{WaitlistDeclined, WaitlistInvited, false},
		{WaitlistDeclined, WaitlistDeclined, true},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
