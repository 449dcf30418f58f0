package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolingCheck(t *testing.T) {
	o := NewOrchestrator(nil)
	require.NoError(t, o.CheckTooling())

	o.SetToolPresent("adb", false)
	err := o.CheckTooling()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "adb")

	_, err = o.Launch("pixel-seedvault")
	require.Error(t, err)
}

func TestLaunchAndStop(t *testing.T) {
	o := NewOrchestrator(nil)
	assert.False(t, o.Ready())

	d, err := o.Launch("pixel-seedvault")
	require.NoError(t, err)
	assert.Greater(t, d.Port, 0)
	assert.Equal(t, StatusReady, d.Status)
	assert.True(t, o.Ready())

	// Double launch of the same profile fails.
	_, err = o.Launch("pixel-seedvault")
	require.Error(t, err)

	o.Stop("pixel-seedvault")
	assert.False(t, o.Ready())
	o.Stop("pixel-seedvault")
}

func TestLaunchUnknownProfile(t *testing.T) {
	o := NewOrchestrator(nil)
	_, err := o.Launch("missing")
	require.Error(t, err)
}

func TestCreateProfile(t *testing.T) {
	o := NewOrchestrator(nil)

	require.NoError(t, o.CreateProfile(Profile{Name: "tablet", APILevel: 33, DeviceType: "tablet"}))
	assert.Len(t, o.Profiles(), 2)

	require.Error(t, o.CreateProfile(Profile{Name: "tablet"}))
	require.Error(t, o.CreateProfile(Profile{}))
}

func TestExecShell(t *testing.T) {
	o := NewOrchestrator(nil)

	_, err := o.ExecShell("pixel-seedvault", "getprop ro.product.model")
	require.Error(t, err)

	_, err = o.Launch("pixel-seedvault")
	require.NoError(t, err)

	out, err := o.ExecShell("pixel-seedvault", "getprop ro.product.model")
	require.NoError(t, err)
	assert.Equal(t, "svsim-virtual", out)

	_, err = o.ExecShell("pixel-seedvault", "rm -rf /")
	require.Error(t, err)
}
