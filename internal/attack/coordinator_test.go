package attack

import (
	"sync"
	"testing"

	"github.com/corvidlabs/corvid/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu   sync.Mutex
	cmds []string
	err  error
}

func (f *fakeSender) SendCommand(cmd string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmds = append(f.cmds, cmd)
	return f.err
}

func (f *fakeSender) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.cmds))
	copy(out, f.cmds)
	return out
}

type fakeAPLookup struct {
	aps map[domain.MAC]domain.AccessPoint
}

func (f *fakeAPLookup) FindAPByBSSID(mac domain.MAC) (domain.AccessPoint, bool) {
	ap, ok := f.aps[mac]
	return ap, ok
}

type allowAllPolicy struct{ whitelist map[string]bool }

func (p *allowAllPolicy) IsWhitelisted(ssid string) bool { return p.whitelist[ssid] }

type noCaptures struct{ has map[domain.MAC]bool }

func (n *noCaptures) HasCapture(mac domain.MAC) bool { return n.has[mac] }

func mustMAC(t *testing.T, s string) domain.MAC {
	t.Helper()
	m, err := domain.ParseMAC(s)
	require.NoError(t, err)
	return m
}

func TestOnAPNew_DispatchesAssocWhenPolicyAttached(t *testing.T) {
	sender := &fakeSender{}
	bssid := mustMAC(t, "aa:bb:cc:dd:ee:ff")
	co := New(sender, nil, nil, &allowAllPolicy{whitelist: map[string]bool{}}, nil, UIHooks{}, nil)

	co.OnAPNew(domain.AccessPoint{BSSID: bssid, SSID: "TargetNet"}, 1)

	assert.Equal(t, []string{"wifi.assoc aa:bb:cc:dd:ee:ff"}, sender.sent())
	assert.Equal(t, 1, co.LifetimeAPs())
}

func TestOnAPNew_NoPolicyEngineSkipsDispatch(t *testing.T) {
	sender := &fakeSender{}
	bssid := mustMAC(t, "aa:bb:cc:dd:ee:ff")
	co := New(sender, nil, nil, nil, nil, UIHooks{}, nil)

	co.OnAPNew(domain.AccessPoint{BSSID: bssid, SSID: "TargetNet"}, 1)

	assert.Empty(t, sender.sent())
	assert.Equal(t, 1, co.LifetimeAPs())
}

func TestOnAPNew_WhitelistedSSIDSkipsDispatch(t *testing.T) {
	sender := &fakeSender{}
	bssid := mustMAC(t, "aa:bb:cc:dd:ee:ff")
	co := New(sender, nil, nil, &allowAllPolicy{whitelist: map[string]bool{"HomeNet": true}}, nil, UIHooks{}, nil)

	co.OnAPNew(domain.AccessPoint{BSSID: bssid, SSID: "HomeNet"}, 1)

	assert.Empty(t, sender.sent())
}

func TestOnAPNew_AlreadyCapturedSkipsDispatch(t *testing.T) {
	sender := &fakeSender{}
	bssid := mustMAC(t, "aa:bb:cc:dd:ee:ff")
	capture := &noCaptures{has: map[domain.MAC]bool{bssid: true}}
	co := New(sender, nil, nil, &allowAllPolicy{whitelist: map[string]bool{}}, capture, UIHooks{}, nil)

	co.OnAPNew(domain.AccessPoint{BSSID: bssid, SSID: "TargetNet"}, 1)

	assert.Empty(t, sender.sent())
}

func TestOnAPNew_RediscoveryDoesNotRedispatch(t *testing.T) {
	sender := &fakeSender{}
	bssid := mustMAC(t, "aa:bb:cc:dd:ee:ff")
	co := New(sender, nil, nil, &allowAllPolicy{whitelist: map[string]bool{}}, nil, UIHooks{}, nil)

	co.OnAPNew(domain.AccessPoint{BSSID: bssid, SSID: "TargetNet"}, 1)
	co.OnAPNew(domain.AccessPoint{BSSID: bssid, SSID: "TargetNet"}, 1)

	assert.Len(t, sender.sent(), 1)
	assert.Equal(t, 1, co.LifetimeAPs())
}

func TestOnClientNew_UntrackedAPSkipsDispatch(t *testing.T) {
	sender := &fakeSender{}
	lookup := &fakeAPLookup{aps: map[domain.MAC]domain.AccessPoint{}}
	co := New(sender, lookup, nil, &allowAllPolicy{whitelist: map[string]bool{}}, nil, UIHooks{}, nil)

	sta := domain.Station{MAC: mustMAC(t, "11:22:33:44:55:66"), APBSSID: mustMAC(t, "aa:bb:cc:dd:ee:ff"), Associated: true}
	co.OnClientNew(sta)

	assert.Empty(t, sender.sent())
}

func TestOnClientNew_TrackedAPDispatchesDeauth(t *testing.T) {
	sender := &fakeSender{}
	bssid := mustMAC(t, "aa:bb:cc:dd:ee:ff")
	lookup := &fakeAPLookup{aps: map[domain.MAC]domain.AccessPoint{bssid: {BSSID: bssid, SSID: "TargetNet"}}}
	co := New(sender, lookup, nil, &allowAllPolicy{whitelist: map[string]bool{}}, nil, UIHooks{}, nil)

	sta := domain.Station{MAC: mustMAC(t, "11:22:33:44:55:66"), APBSSID: bssid, Associated: true}
	co.OnClientNew(sta)

	assert.Equal(t, []string{"wifi.deauth 11:22:33:44:55:66"}, sender.sent())
}

func TestOnClientNew_UnassociatedStationIgnored(t *testing.T) {
	sender := &fakeSender{}
	co := New(sender, nil, nil, &allowAllPolicy{whitelist: map[string]bool{}}, nil, UIHooks{}, nil)

	co.OnClientNew(domain.Station{MAC: mustMAC(t, "11:22:33:44:55:66"), Associated: false})

	assert.Empty(t, sender.sent())
}

func TestOnHandshake_FirstSightTriggersAnimationAndRescan(t *testing.T) {
	var animKind domain.AnimationKind
	var face domain.FaceEnum
	var animCalled, rescanCalled int
	ui := UIHooks{
		SetFace: func(f domain.FaceEnum) { face = f },
		StartAnimation: func(kind domain.AnimationKind, intervalMs int64) {
			animKind = kind
			animCalled++
		},
	}
	co := New(&fakeSender{}, nil, nil, nil, nil, ui, func() { rescanCalled++ })

	co.OnHandshake(HandshakeEvent{AP: "aa:bb:cc:dd:ee:ff", SSID: "TargetNet"})

	assert.Equal(t, 1, animCalled)
	assert.Equal(t, domain.AnimDownload, animKind)
	assert.Equal(t, domain.FaceHappy, face)
	assert.Equal(t, 1, rescanCalled)
}

func TestOnHandshake_RepeatSuppressesAnimationButStillRescans(t *testing.T) {
	animCalled := 0
	rescanCalled := 0
	ui := UIHooks{StartAnimation: func(domain.AnimationKind, int64) { animCalled++ }}
	co := New(&fakeSender{}, nil, nil, nil, nil, ui, func() { rescanCalled++ })

	ev := HandshakeEvent{AP: "aa:bb:cc:dd:ee:ff", SSID: "TargetNet"}
	co.OnHandshake(ev)
	co.OnHandshake(ev)

	assert.Equal(t, 1, animCalled)
	assert.Equal(t, 2, rescanCalled)
}

func TestUploadWatchdog(t *testing.T) {
	assert.False(t, UploadWatchdog(domain.AnimUpload, 0, 100000))
	assert.False(t, UploadWatchdog(domain.AnimUpload, 1000, 1000+uploadWatchdogMs-1))
	assert.True(t, UploadWatchdog(domain.AnimUpload, 1000, 1000+uploadWatchdogMs))
	assert.False(t, UploadWatchdog(domain.AnimLook, 1000, 1000+uploadWatchdogMs), "only an armed upload sequence is watched")
}

func TestBoundedSet_EvictsOldestOnceFull(t *testing.T) {
	bs := newBoundedSet(2)
	a := mustMAC(t, "aa:aa:aa:aa:aa:aa")
	b := mustMAC(t, "bb:bb:bb:bb:bb:bb")
	c := mustMAC(t, "cc:cc:cc:cc:cc:cc")

	bs.add(a)
	bs.add(b)
	bs.add(c)

	assert.False(t, bs.contains(a))
	assert.True(t, bs.contains(b))
	assert.True(t, bs.contains(c))
}
