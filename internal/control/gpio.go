package control

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// GPIOSignal reads the mode line from a GPIO pin. The pin is configured
// as a pulled-down input, so a disconnected line reads low and the
// relay idles in receiving mode until the line is actively driven high.
type GPIOSignal struct {
	pin gpio.PinIO
}

// NewGPIOSignal looks up a pin by name (e.g. "GPIO4") and configures it
// as an input. The periph host must be initialized first.
func NewGPIOSignal(name string) (*GPIOSignal, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpio pin %q not found", name)
	}

	if err := pin.In(gpio.PullDown, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("failed to configure gpio pin %s: %w", name, err)
	}

	return &GPIOSignal{pin: pin}, nil
}

// Level returns the pin's current level, true when high
func (g *GPIOSignal) Level() (bool, error) {
	return bool(g.pin.Read()), nil
}
