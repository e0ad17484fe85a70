package rangefinder

import (
	"fmt"

	"go.bug.st/serial"
)

// SerialFactory opens real serial ports via go.bug.st/serial.
type SerialFactory struct{}

// Open implements PortFactory.
func (SerialFactory) Open(path string, mode *PortMode) (Porter, error) {
	m, err := serialMode(mode)
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, m)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return port, nil
}

func serialMode(mode *PortMode) (*serial.Mode, error) {
	if mode == nil {
		mode = DefaultPortMode()
	}

	var parity serial.Parity
	switch mode.Parity {
	case NoParity:
		parity = serial.NoParity
	case OddParity:
		parity = serial.OddParity
	case EvenParity:
		parity = serial.EvenParity
	default:
		return nil, fmt.Errorf("unsupported parity %d", mode.Parity)
	}

	var stopBits serial.StopBits
	switch mode.StopBits {
	case OneStopBit:
		stopBits = serial.OneStopBit
	case TwoStopBits:
		stopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("unsupported stop bits %d", mode.StopBits)
	}

	return &serial.Mode{
		BaudRate: mode.BaudRate,
		DataBits: mode.DataBits,
		Parity:   parity,
		StopBits: stopBits,
	}, nil
}
