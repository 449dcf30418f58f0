// Package device simulates the emulator/ADB orchestration layer: tooling
// checks, device profiles and a launchable device process on an allocated
// local port. The core consumes it only as a readiness signal; nothing in
// the vault or protocol service depends on a device being up.
package device

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/akarpov/svsim/internal/logger"
)

// Profile describes a launchable simulated device.
type Profile struct {
	Name       string `json:"name"`
	APILevel   int    `json:"apiLevel"`
	DeviceType string `json:"deviceType"`
}

// Status is the lifecycle state of a device process.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusReady    Status = "ready"
)

// requiredTools is the toolchain a real orchestrator would shell out to.
// The simulator only checks that the names are configured, it never execs.
var requiredTools = []string{"emulator", "adb"}

// Device is one simulated device process.
type Device struct {
	Profile Profile   `json:"profile"`
	Port    int       `json:"port"`
	Status  Status    `json:"status"`
	Started time.Time `json:"started"`
}

// Orchestrator owns the simulated device fleet.
type Orchestrator struct {
	log *zap.Logger

	mu       sync.Mutex
	tools    map[string]bool
	profiles map[string]Profile
	devices  map[string]*Device
	shell    map[string]string
}

// NewOrchestrator builds an orchestrator with every required tool present
// and a default phone profile.
func NewOrchestrator(log *zap.Logger) *Orchestrator {
	o := &Orchestrator{
		log:      logger.OrNop(log),
		tools:    make(map[string]bool),
		profiles: make(map[string]Profile),
		devices:  make(map[string]*Device),
		shell: map[string]string{
			"getprop ro.build.version.sdk": "34",
			"getprop ro.product.model":     "svsim-virtual",
			"input keyevent KEYCODE_WAKEUP": "",
		},
	}
	for _, tool := range requiredTools {
		o.tools[tool] = true
	}
	o.profiles["pixel-seedvault"] = Profile{Name: "pixel-seedvault", APILevel: 34, DeviceType: "phone"}
	return o
}

// SetToolPresent marks a tool missing or present, for failure injection.
func (o *Orchestrator) SetToolPresent(name string, present bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tools[name] = present
}

// CheckTooling reports every missing required tool.
func (o *Orchestrator) CheckTooling() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var missing []string
	for _, tool := range requiredTools {
		if !o.tools[tool] {
			missing = append(missing, tool)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("required tooling missing: %s", strings.Join(missing, ", "))
	}
	return nil
}

// CreateProfile registers a device profile.
func (o *Orchestrator) CreateProfile(p Profile) error {
	if p.Name == "" {
		return fmt.Errorf("profile name is empty")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.profiles[p.Name]; ok {
		return fmt.Errorf("profile %s already exists", p.Name)
	}
	o.profiles[p.Name] = p
	return nil
}

// Profiles lists the registered profiles.
func (o *Orchestrator) Profiles() []Profile {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Profile, 0, len(o.profiles))
	for _, p := range o.profiles {
		out = append(out, p)
	}
	return out
}

// Launch starts a device process for the named profile on a freshly
// allocated localhost port.
func (o *Orchestrator) Launch(profileName string) (*Device, error) {
	if err := o.CheckTooling(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	p, ok := o.profiles[profileName]
	if !ok {
		return nil, fmt.Errorf("profile %s not found", profileName)
	}
	if _, running := o.devices[profileName]; running {
		return nil, fmt.Errorf("device %s already running", profileName)
	}

	port, err := allocatePort()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate device port: %w", err)
	}

	d := &Device{Profile: p, Port: port, Status: StatusReady, Started: time.Now()}
	o.devices[profileName] = d

	o.log.Info("device launched",
		zap.String("profile", profileName),
		zap.Int("port", port))
	cp := *d
	return &cp, nil
}

// Stop terminates a running device. Stopping a stopped device is a no-op.
func (o *Orchestrator) Stop(profileName string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.devices[profileName]; ok {
		delete(o.devices, profileName)
		o.log.Info("device stopped", zap.String("profile", profileName))
	}
}

// ExecShell answers a remote shell command from the canned table.
func (o *Orchestrator) ExecShell(profileName, command string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.devices[profileName]; !ok {
		return "", fmt.Errorf("device %s is not running", profileName)
	}
	out, ok := o.shell[command]
	if !ok {
		return "", fmt.Errorf("unknown shell command: %s", command)
	}
	return out, nil
}

// Ready reports whether at least one device is up. This is the only signal
// the core ever reads.
func (o *Orchestrator) Ready() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, d := range o.devices {
		if d.Status == StatusReady {
			return true
		}
	}
	return false
}

// allocatePort asks the kernel for a free localhost port and releases it
// immediately, the way test harnesses allocate node ports.
func allocatePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
