package printer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	bluezBus            = "org.bluez"
	deviceIface         = "org.bluez.Device1"
	serviceIface        = "org.bluez.GattService1"
	characteristicIface = "org.bluez.GattCharacteristic1"
	propertiesIface     = "org.freedesktop.DBus.Properties"
	objectManagerMethod = "org.freedesktop.DBus.ObjectManager.GetManagedObjects"

	flagWrite                = "write"
	flagWriteWithoutResponse = "write-without-response"
)

// PrinterServices are the GATT services of common thermal printers,
// probed before any other service.
var PrinterServices = []string{
	"000018f0-0000-1000-8000-00805f9b34fb",
	"0000ffe0-0000-1000-8000-00805f9b34fb",
	"0000ff00-0000-1000-8000-00805f9b34fb",
}

// BlueZ dials a printer through the BlueZ daemon on the system bus.
type BlueZ struct {
	Adapter        string
	Address        string
	ResolveTimeout time.Duration
	PollInterval   time.Duration
	logger         *zap.SugaredLogger
}

// NewBlueZ returns a dialer for the printer at address (AA:BB:CC:DD:EE:FF)
// on adapter (hci0).
func NewBlueZ(adapter, address string, logger *zap.SugaredLogger) *BlueZ {
	return &BlueZ{
		Adapter:        adapter,
		Address:        address,
		ResolveTimeout: 15 * time.Second,
		PollInterval:   100 * time.Millisecond,
		logger:         logger,
	}
}

// DevicePath returns the BlueZ object path of address on adapter.
func DevicePath(adapter, address string) dbus.ObjectPath {
	return dbus.ObjectPath("/org/bluez/" + adapter + "/dev_" + strings.ReplaceAll(strings.ToUpper(address), ":", "_"))
}

// Dial connects to the printer, waits for its services to be resolved
// and picks the characteristic jobs are written to.
func (b *BlueZ) Dial(ctx context.Context) (Device, error) {
	if b.Address == "" {
		return nil, fmt.Errorf("missing printer address")
	}
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus, error %v", err)
	}
	path := DevicePath(b.Adapter, b.Address)
	dev := conn.Object(bluezBus, path)
	if err := dev.CallWithContext(ctx, deviceIface+".Connect", 0).Err; err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to printer [%s], error %v", b.Address, err)
	}
	if err := b.waitResolved(ctx, dev); err != nil {
		dev.Call(deviceIface+".Disconnect", 0)
		conn.Close()
		return nil, err
	}
	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	if err := conn.Object(bluezBus, "/").CallWithContext(ctx, objectManagerMethod, 0).Store(&objects); err != nil {
		dev.Call(deviceIface+".Disconnect", 0)
		conn.Close()
		return nil, fmt.Errorf("failed to list gatt objects, error %v", err)
	}
	found, ok := pickCharacteristic(objects, path)
	if !ok {
		dev.Call(deviceIface+".Disconnect", 0)
		conn.Close()
		return nil, ErrNoWritableCharacteristic
	}
	name := b.Address
	if v, err := dev.GetProperty(deviceIface + ".Name"); err == nil {
		if s, ok := v.Value().(string); ok && s != "" {
			name = s
		}
	}
	d := &bluezDevice{
		conn: conn,
		obj:  dev,
		name: name,
		char: &gattCharacteristic{
			obj:   conn.Object(bluezBus, found.path),
			uuid:  found.uuid,
			flags: found.flags,
		},
	}
	d.connected.Store(true)
	if err := d.watch(path); err != nil {
		b.logger.Warnw("cannot watch printer disconnects", "device", name, "error", err)
	}
	b.logger.Infow("bluez printer ready", "device", name, "service", found.service, "characteristic", found.uuid)
	return d, nil
}

func (b *BlueZ) waitResolved(ctx context.Context, dev dbus.BusObject) error {
	ctx, cancel := context.WithTimeout(ctx, b.ResolveTimeout)
	defer cancel()
	t := time.NewTicker(b.PollInterval)
	defer t.Stop()
	for {
		v, err := dev.GetProperty(deviceIface + ".ServicesResolved")
		if err == nil {
			if resolved, _ := v.Value().(bool); resolved {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("printer services were not resolved, error %v", ctx.Err())
		case <-t.C:
		}
	}
}

type candidateChar struct {
	path    dbus.ObjectPath
	uuid    string
	service string
	flags   []string
}

func (c candidateChar) writable() bool {
	for _, f := range c.flags {
		if f == flagWrite || f == flagWriteWithoutResponse {
			return true
		}
	}
	return false
}

// pickCharacteristic returns the first writable characteristic of the
// device at dev, preferring the known printer services in their order.
func pickCharacteristic(objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant, dev dbus.ObjectPath) (candidateChar, bool) {
	services := map[dbus.ObjectPath]string{}
	for p, ifaces := range objects {
		props, ok := ifaces[serviceIface]
		if !ok || !strings.HasPrefix(string(p), string(dev)+"/") {
			continue
		}
		services[p] = strings.ToLower(variantString(props["UUID"]))
	}
	var chars []candidateChar
	for p, ifaces := range objects {
		props, ok := ifaces[characteristicIface]
		if !ok {
			continue
		}
		svcPath, _ := props["Service"].Value().(dbus.ObjectPath)
		svc, ok := services[svcPath]
		if !ok {
			continue
		}
		flags, _ := props["Flags"].Value().([]string)
		c := candidateChar{path: p, uuid: strings.ToLower(variantString(props["UUID"])), service: svc, flags: flags}
		if c.writable() {
			chars = append(chars, c)
		}
	}
	if len(chars) == 0 {
		return candidateChar{}, false
	}
	rank := func(service string) int {
		for i, s := range PrinterServices {
			if s == service {
				return i
			}
		}
		return len(PrinterServices)
	}
	sort.Slice(chars, func(i, j int) bool {
		ri, rj := rank(chars[i].service), rank(chars[j].service)
		if ri != rj {
			return ri < rj
		}
		return chars[i].path < chars[j].path
	})
	return chars[0], true
}

func variantString(v dbus.Variant) string {
	s, _ := v.Value().(string)
	return s
}

type bluezDevice struct {
	conn      *dbus.Conn
	obj       dbus.BusObject
	name      string
	char      *gattCharacteristic
	connected atomic.Bool
}

func (d *bluezDevice) Name() string                   { return d.name }
func (d *bluezDevice) Connected() bool                { return d.connected.Load() }
func (d *bluezDevice) Characteristic() Characteristic { return d.char }

// watch marks the device disconnected when BlueZ reports it.
func (d *bluezDevice) watch(path dbus.ObjectPath) error {
	err := d.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(path),
		dbus.WithMatchInterface(propertiesIface),
		dbus.WithMatchMember("PropertiesChanged"),
	)
	if err != nil {
		return err
	}
	signals := make(chan *dbus.Signal, 8)
	d.conn.Signal(signals)
	go func() {
		for sig := range signals {
			if len(sig.Body) < 2 {
				continue
			}
			if iface, _ := sig.Body[0].(string); iface != deviceIface {
				continue
			}
			changed, _ := sig.Body[1].(map[string]dbus.Variant)
			if v, ok := changed["Connected"]; ok {
				if connected, _ := v.Value().(bool); !connected {
					d.connected.Store(false)
				}
			}
		}
	}()
	return nil
}

func (d *bluezDevice) Disconnect() error {
	d.connected.Store(false)
	err := d.obj.Call(deviceIface+".Disconnect", 0).Err
	if cerr := d.conn.Close(); err == nil {
		err = cerr
	}
	return err
}

type gattCharacteristic struct {
	obj   dbus.BusObject
	uuid  string
	flags []string
}

func (c *gattCharacteristic) UUID() string { return c.uuid }

func (c *gattCharacteristic) has(flag string) bool {
	for _, f := range c.flags {
		if f == flag {
			return true
		}
	}
	return false
}

func (c *gattCharacteristic) CanWriteWithoutResponse() bool { return c.has(flagWriteWithoutResponse) }
func (c *gattCharacteristic) CanWrite() bool                { return c.has(flagWrite) }

func (c *gattCharacteristic) writeValue(p []byte, mode string) error {
	opts := map[string]dbus.Variant{"type": dbus.MakeVariant(mode)}
	return c.obj.Call(characteristicIface+".WriteValue", 0, p, opts).Err
}

func (c *gattCharacteristic) WriteWithoutResponse(p []byte) error {
	return c.writeValue(p, "command")
}

func (c *gattCharacteristic) Write(p []byte) error {
	return c.writeValue(p, "request")
}
