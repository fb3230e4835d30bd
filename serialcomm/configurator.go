// serialcomm/configurator.go
package serialcomm

import (
	"context"
	"fmt"
)

// SetupFrames returns the frames written to the device at startup, in the
// order they are sent.
func SetupFrames(cfg BridgeConfig) []Frame {
	return []Frame{
		AddressFrame(cfg.Us),
		ConfigFrame(KeyRetransmissions, cfg.Retransmissions),
		ConfigFrame(KeyFECThreshold, cfg.FECThreshold),
		ConfigFrame(KeyChannelBusyThreshold, cfg.ChannelBusyThreshold),
	}
}

// Configure waits for the device to boot and then writes the setup frames,
// pausing for the settle delay after each one. It must finish before any
// message traffic reaches the device.
func (b *Bridge) Configure(ctx context.Context) error {
	if err := sleep(ctx, b.cfg.BootDelay); err != nil {
		return newLinkError(ClassSetup, "configurator", "wait for boot", err)
	}
	for _, f := range SetupFrames(b.cfg) {
		kind := ClassifyOutbound(f.Line())
		if err := writeFrame(b.device, f); err != nil {
			return newLinkError(ClassSetup, "configurator", fmt.Sprintf("write %s frame", kind), err)
		}
		b.cfg.Metrics.frameSent(kind, len(f))
		b.logger.Log(ctx, LevelTrace, "Sent setup frame", "kind", kind, "frame", printable(f.Line()))
		if err := sleep(ctx, b.cfg.SettleDelay); err != nil {
			return newLinkError(ClassSetup, "configurator", "settle", err)
		}
	}
	b.logger.Info("Connected to and configured device")
	return nil
}
