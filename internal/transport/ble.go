/*
 * relaycore: session core for multi-protocol terminal workstations
 * Copyright 2019-2024 Daniel Selifonov
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package transport

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/currantlabs/ble"
	"github.com/currantlabs/ble/linux"
)

var bleDeviceOnce sync.Once
var bleDeviceErr error

func ensureBLEDevice() error {
	bleDeviceOnce.Do(func() {
		d, err := linux.NewDevice()
		if err != nil {
			bleDeviceErr = err
			return
		}
		ble.SetDefaultDevice(d)
	})
	return bleDeviceErr
}

// BLEConfig names a peripheral and the GATT characteristics used as the
// terminal's write and notify endpoints, a Nordic-UART-style pipe: one
// characteristic to write to, one to subscribe on for inbound
// notifications.
type BLEConfig struct {
	Address        string
	ServiceUUID    string
	WriteCharUUID  string
	NotifyCharUUID string
	ConnectTimeout time.Duration
}

// BLETransport drives a BLE GATT connection through currantlabs/ble.
// Because GATT notifications are callback-delivered rather than
// blocking-readable, Read drains an internal buffer fed by the
// subscription handler; MaxFrameSize (Capabilities) reflects the
// characteristic's ATT MTU-limited write size.
type BLETransport struct {
	statTracker

	client    ble.Client
	writeChar *ble.Characteristic

	mu      sync.Mutex
	cond    *sync.Cond
	buf     bytes.Buffer
	closed  bool
	readErr error
}

// DialBLE connects to the named peripheral, discovers its GATT profile,
// and subscribes to the configured notify characteristic.
func DialBLE(cfg BLEConfig) (*BLETransport, error) {
	if err := ensureBLEDevice(); err != nil {
		return nil, err
	}
	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	addr := ble.NewAddr(cfg.Address)
	client, err := ble.Dial(ctx, addr)
	if err != nil {
		return nil, err
	}

	profile, err := client.DiscoverProfile(ctx)
	if err != nil {
		_ = client.CancelConnection()
		return nil, err
	}

	writeUUID, err := ble.Parse(cfg.WriteCharUUID)
	if err != nil {
		_ = client.CancelConnection()
		return nil, err
	}
	notifyUUID, err := ble.Parse(cfg.NotifyCharUUID)
	if err != nil {
		_ = client.CancelConnection()
		return nil, err
	}

	writeChar := profile.FindCharacteristic(ble.NewCharacteristic(writeUUID))
	notifyChar := profile.FindCharacteristic(ble.NewCharacteristic(notifyUUID))
	if writeChar == nil || notifyChar == nil {
		_ = client.CancelConnection()
		return nil, errors.New("transport: BLE characteristic not found in peripheral profile")
	}

	t := &BLETransport{
		statTracker: newStatTracker(),
		client:      client,
		writeChar:   writeChar,
	}
	t.cond = sync.NewCond(&t.mu)

	if err := client.Subscribe(notifyChar, false, t.onNotify); err != nil {
		_ = client.CancelConnection()
		return nil, err
	}

	go func() {
		<-client.Disconnected()
		t.mu.Lock()
		t.closed = true
		t.readErr = errors.New("transport: BLE peripheral disconnected")
		t.cond.Broadcast()
		t.mu.Unlock()
	}()

	return t, nil
}

func (t *BLETransport) onNotify(data []byte) {
	t.mu.Lock()
	t.buf.Write(data)
	t.cond.Broadcast()
	t.mu.Unlock()
}

// Read blocks until at least one notification byte is available, matching
// io.Reader semantics.
func (t *BLETransport) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for t.buf.Len() == 0 && !t.closed {
		t.cond.Wait()
	}
	if t.buf.Len() == 0 && t.closed {
		return 0, t.readErr
	}
	n, _ := t.buf.Read(p)
	t.noteRead(n)
	return n, nil
}

// Write splits p into MTU-sized GATT writes (Capabilities().MaxFrameSize),
// since a single characteristic write cannot exceed the negotiated ATT MTU.
func (t *BLETransport) Write(p []byte) (int, error) {
	caps := t.Capabilities()
	chunk := caps.MaxFrameSize
	if chunk <= 0 {
		chunk = len(p)
	}
	total := 0
	for len(p) > 0 {
		n := chunk
		if n > len(p) {
			n = len(p)
		}
		if err := t.client.WriteCharacteristic(t.writeChar, p[:n], true); err != nil {
			return total, err
		}
		total += n
		p = p[n:]
	}
	t.noteWrite(total)
	return total, nil
}

func (t *BLETransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.cond.Broadcast()
	t.mu.Unlock()
	return t.client.CancelConnection()
}

func (t *BLETransport) Kind() Kind { return KindBLE }

func (t *BLETransport) Capabilities() Capabilities {
	c, _ := CapabilitiesFor(KindBLE)
	return c
}

func (t *BLETransport) Stats() Stats { return t.stats() }
