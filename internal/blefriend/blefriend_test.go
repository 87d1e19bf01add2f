package blefriend

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(port *ScriptedPort, devices []string, stdin string) (*Session, *bytes.Buffer) {
	var out bytes.Buffer
	s := &Session{
		Glob: func(pattern string) ([]string, error) {
			if pattern == "/dev/ttyUSB*" {
				return devices, nil
			}
			return nil, nil
		},
		In:           strings.NewReader(stdin),
		Out:          &out,
		ResponseWait: 50 * time.Millisecond,
		ResetWait:    time.Millisecond,
	}
	if port != nil {
		s.Open = func(path string, baudRate int) (Porter, error) {
			return port, nil
		}
	}
	return s, &out
}

func TestConfigure_NoDeviceIsNoOpSuccess(t *testing.T) {
	opened := false
	s, out := newSession(nil, nil, "")
	s.Open = func(path string, baudRate int) (Porter, error) {
		opened = true
		return nil, nil
	}

	err := s.Configure(context.Background())
	require.NoError(t, err, "absence of hardware is a normal outcome")
	assert.False(t, opened, "no port should be opened when no device matches")
	assert.Contains(t, out.String(), "No BLE dongle detected")
}

func TestConfigure_FullSession(t *testing.T) {
	port := &ScriptedPort{
		Responses: []string{
			"BLEFRIEND32\r\nnRF51822\r\nOK\r\n", // ATI
			"OK\r\n",                            // AT+GAPCONNECTABLE=1
			"OK\r\n",                            // AT+GAPSTARTADV
			"",                                  // ATZ
		},
	}
	s, out := newSession(port, []string{"/dev/ttyUSB0"}, "\n\n")

	err := s.Configure(context.Background())
	require.NoError(t, err)

	written := port.Written()
	wantOrder := []string{"ATI\r\n", "AT+GAPCONNECTABLE=1\r\n", "AT+GAPSTARTADV\r\n", "ATZ\r\n"}
	idx := 0
	for _, cmd := range wantOrder {
		pos := strings.Index(written[idx:], cmd)
		require.GreaterOrEqual(t, pos, 0, "command %q missing or out of order in %q", cmd, written)
		idx += pos + len(cmd)
	}

	assert.True(t, port.Closed, "port must be closed on the success path")
	assert.Contains(t, out.String(), "MODE switch on the Bluefruit to CMD")
	assert.Contains(t, out.String(), "Return the MODE switch to DATA")
}

func TestConfigure_BadIdentificationSendsNoConfigCommands(t *testing.T) {
	port := &ScriptedPort{
		Responses: []string{"garbage\r\nOK\r\n"},
	}
	s, _ := newSession(port, []string{"/dev/ttyUSB0"}, "\n\n")

	err := s.Configure(context.Background())
	require.Error(t, err, "a response without the device signature fails the session")
	assert.Contains(t, err.Error(), "MODE switch")

	written := port.Written()
	assert.Contains(t, written, "ATI\r\n")
	assert.NotContains(t, written, "AT+GAPCONNECTABLE", "no config command may follow a failed identification")
	assert.NotContains(t, written, "ATZ")
	assert.True(t, port.Closed, "port must be closed on the failure path")
}

func TestConfigure_ErrorResponseToFeatureToggleIsTolerated(t *testing.T) {
	port := &ScriptedPort{
		Responses: []string{
			"Adafruit Bluefruit LE\r\nOK\r\n",
			"ERROR\r\n", // old firmware rejects the toggle
			"OK\r\n",
			"",
		},
	}
	s, _ := newSession(port, []string{"/dev/ttyUSB0"}, "\n\n")

	err := s.Configure(context.Background())
	require.NoError(t, err, "an explicit ERROR ack is tolerated for feature toggles")
	assert.Contains(t, port.Written(), "ATZ\r\n", "the session should proceed to reset")
}

func TestConfigure_InterruptStillWarnsAboutSwitchPosition(t *testing.T) {
	port := &ScriptedPort{}
	s, out := newSession(port, []string{"/dev/ttyUSB0"}, "\n\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Configure(ctx)
	require.Error(t, err, "a cancelled session must not report success")
	assert.Contains(t, err.Error(), "interrupted")
	assert.Contains(t, out.String(), "MODE switch on DATA",
		"an interrupted session must still remind the operator to flip the switch back")
	assert.NotContains(t, port.Written(), "AT+GAPCONNECTABLE",
		"no config command may be sent after cancellation")
	assert.True(t, port.Closed, "port must be closed on the interrupt path")
}

func TestConfigure_NoOperatorInputFailsSession(t *testing.T) {
	port := &ScriptedPort{}
	s, _ := newSession(port, []string{"/dev/ttyUSB0"}, "")

	err := s.Configure(context.Background())
	require.Error(t, err, "the CMD-switch prompt cannot be confirmed without an operator")
	assert.Empty(t, port.Written(), "no bytes may be sent before the switch is confirmed")
}

func TestFindDevice(t *testing.T) {
	tests := []struct {
		name    string
		devices []string
		want    string
		wantOK  bool
	}{
		{"none", nil, "", false},
		{"one", []string{"/dev/ttyUSB0"}, "/dev/ttyUSB0", true},
		{"several picks first", []string{"/dev/ttyUSB0", "/dev/ttyUSB1"}, "/dev/ttyUSB0", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newSession(nil, tt.devices, "")
			got, ok, err := s.FindDevice()
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
