// NTP client driver. One Client doubles as the device's network session
// (Connect/Disconnect own the UDP socket) and its remote time source
// (FetchTime performs one SNTP exchange).

package ntpc

import (
	"context"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"

	"example.com/oled-clock/base/timebase"
	"example.com/oled-clock/net/ntp"
)

const defaultTimeout = 5 * time.Second

var (
	errNotConnected    = errors.New("no session established")
	errUnrelatedPacket = errors.New("unrelated packet received")
)

type Client struct {
	Log        *zap.Logger
	LocalAddr  *net.UDPAddr // optional
	RemoteAddr *net.UDPAddr
	Timeout    time.Duration // per-exchange bound, 0 means defaultTimeout

	conn *net.UDPConn
}

// Connect dials the server and verifies reachability with one probe
// exchange. It is idempotent; an established session is left untouched.
func (c *Client) Connect(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	conn, err := net.DialUDP("udp", c.LocalAddr, c.RemoteAddr)
	if err != nil {
		return err
	}
	c.conn = conn
	_, err = c.exchange(ctx)
	if err != nil {
		c.Disconnect()
		return err
	}
	return nil
}

func (c *Client) Connected() bool {
	return c.conn != nil
}

// Disconnect closes the session. Safe to call in any state.
func (c *Client) Disconnect() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// FetchTime performs one SNTP exchange and returns the current time
// according to the server, corrected by half the round trip.
func (c *Client) FetchTime(ctx context.Context) (time.Time, error) {
	if c.conn == nil {
		return time.Time{}, errNotConnected
	}
	return c.exchange(ctx)
}

func (c *Client) exchange(ctx context.Context) (time.Time, error) {
	deadline := timebase.Now().Add(c.timeout())
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	err := c.conn.SetDeadline(deadline)
	if err != nil {
		return time.Time{}, err
	}

	buf := make([]byte, ntp.PacketLen)

	cTxTime := timebase.Now()

	ntpreq := ntp.Packet{}
	ntpreq.SetVersion(ntp.VersionMax)
	ntpreq.SetMode(ntp.ModeClient)
	ntpreq.TransmitTime = ntp.Time64FromTime(cTxTime)
	ntp.EncodePacket(&buf, &ntpreq)

	_, err = c.conn.Write(buf)
	if err != nil {
		return time.Time{}, err
	}

	for {
		buf = buf[:cap(buf)]
		n, err := c.conn.Read(buf)
		if err != nil {
			return time.Time{}, err
		}
		cRxTime := timebase.Now()
		buf = buf[:n]

		var ntpresp ntp.Packet
		err = ntp.DecodePacket(&ntpresp, buf)
		if err != nil {
			c.Log.Debug("failed to decode packet", zap.Error(err))
			continue
		}
		if ntpresp.OriginTime != ntpreq.TransmitTime {
			c.Log.Debug("ignoring packet", zap.Error(errUnrelatedPacket))
			continue
		}
		err = ntp.ValidateResponseMetadata(&ntpresp)
		if err != nil {
			return time.Time{}, err
		}

		sRxTime := ntp.TimeFromTime64(ntpresp.ReceiveTime, cTxTime)
		sTxTime := ntp.TimeFromTime64(ntpresp.TransmitTime, cTxTime)
		off := ntp.ClockOffset(cTxTime, sRxTime, sTxTime, cRxTime)
		return cRxTime.Add(off), nil
	}
}

func (c *Client) timeout() time.Duration {
	if c.Timeout != 0 {
		return c.Timeout
	}
	return defaultTimeout
}
