package license

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGrantLookup(t *testing.T) {
	lic := &License{Modules: []ModuleGrant{
		{Key: "payroll", Enabled: true},
		{Key: "leave", Enabled: false},
	}}

	require.NotNil(t, lic.Grant("payroll"))
	require.Nil(t, lic.Grant("documents"))

	// the pointer aliases the slice entry so callers can mutate in place
	lic.Grant("leave").Enabled = true
	require.True(t, lic.Modules[1].Enabled)
}

func TestSetGrantKeepsOneGrantPerKey(t *testing.T) {
	lic := &License{}

	lic.SetGrant(ModuleGrant{Key: "payroll", Tier: TierStarter})
	lic.SetGrant(ModuleGrant{Key: "payroll", Tier: TierBusiness})
	lic.SetGrant(ModuleGrant{Key: "leave"})

	require.Len(t, lic.Modules, 2)
	require.Equal(t, TierBusiness, lic.Grant("payroll").Tier)
}

func TestGrantExpiry(t *testing.T) {
	now := time.Now()

	require.False(t, ModuleGrant{}.Expired(now), "no expiry means never expires")
	require.False(t, ModuleGrant{ExpiresAt: now.Add(time.Hour)}.Expired(now))
	require.True(t, ModuleGrant{ExpiresAt: now.Add(-time.Hour)}.Expired(now))
}

func TestLimitsFor(t *testing.T) {
	emp := int64(10)
	l := Limits{Employees: &emp}

	require.Equal(t, &emp, l.For(LimitEmployees))
	require.Nil(t, l.For(LimitStorage))
	require.Nil(t, l.For("bogus"))
}

func TestTierAndStatusValidation(t *testing.T) {
	require.Equal(t, "business", TierBusiness.String())
	require.Empty(t, Tier("platinum").String())
	require.Equal(t, "active", StatusActive.String())
	require.Empty(t, Status("bogus").String())
}
