// Package wpa talks to wpa_supplicant over its control interface, the unix
// datagram socket wpa_cli uses.
package wpa

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-errors/errors"
)

const (
	DefaultCtrlDir = "/var/run/wpa_supplicant"
	DefaultTimeout = 10 * time.Second

	// replies larger than this are truncated by wpa_supplicant anyway
	maxReplySize = 10240
)

var counter uint32

type Config struct {
	// CtrlDir is the directory holding one control socket per interface.
	CtrlDir   string
	Interface string

	// LocalDir is where the client socket is bound, wpa_supplicant sends
	// its replies there.
	LocalDir string
	Timeout  time.Duration
}

// Client is a connection to the control socket of a single interface.
type Client struct {
	mu      sync.Mutex
	conn    *net.UnixConn
	local   string
	timeout time.Duration
}

// Dial connects to the control socket of the configured interface.
func Dial(config *Config) (*Client, error) {
	if config.Interface == "" {
		return nil, errors.New("interface is required")
	}

	ctrlDir := config.CtrlDir
	if ctrlDir == "" {
		ctrlDir = DefaultCtrlDir
	}

	localDir := config.LocalDir
	if localDir == "" {
		localDir = os.TempDir()
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	local := filepath.Join(localDir, fmt.Sprintf("wifiprovd_%d-%d", os.Getpid(), atomic.AddUint32(&counter, 1)))
	_ = os.Remove(local)

	laddr := &net.UnixAddr{Name: local, Net: "unixgram"}
	raddr := &net.UnixAddr{Name: filepath.Join(ctrlDir, config.Interface), Net: "unixgram"}

	conn, err := net.DialUnix("unixgram", laddr, raddr)
	if err != nil {
		_ = os.Remove(local)
		return nil, errors.Errorf("could not connect to %v: %v", raddr.Name, err)
	}

	return &Client{
		conn:    conn,
		local:   local,
		timeout: timeout,
	}, nil
}

// Request sends cmd and returns the raw reply.
func (c *Client) Request(cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.conn.SetDeadline(time.Now().Add(c.timeout))
	if err != nil {
		return "", errors.Errorf("could not set deadline: %v", err)
	}

	_, err = c.conn.Write([]byte(cmd))
	if err != nil {
		return "", errors.Errorf("could not send %v: %v", command(cmd), err)
	}

	buf := make([]byte, maxReplySize)

	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			return "", errors.Errorf("could not receive reply to %v: %v", command(cmd), err)
		}

		// unsolicited event messages start with their priority
		if n > 0 && buf[0] == '<' {
			continue
		}

		return string(buf[:n]), nil
	}
}

// Command sends cmd and fails when wpa_supplicant answers with FAIL.
func (c *Client) Command(cmd string) (string, error) {
	reply, err := c.Request(cmd)
	if err != nil {
		return "", err
	}

	if IsFail(reply) {
		return reply, errors.Errorf("%v failed: %v", command(cmd), strings.TrimSpace(reply))
	}

	return reply, nil
}

// Close closes the connection and removes the client socket.
func (c *Client) Close() error {
	err := c.conn.Close()
	_ = os.Remove(c.local)

	if err != nil {
		return errors.Errorf("could not close connection: %v", err)
	}

	return nil
}

// IsFail reports whether reply is one of wpa_supplicant's failure replies.
func IsFail(reply string) bool {
	return strings.HasPrefix(strings.TrimSpace(reply), "FAIL")
}

// command strips the arguments of cmd, keys must not end up in logs.
func command(cmd string) string {
	if i := strings.IndexByte(cmd, ' '); i >= 0 {
		return cmd[:i]
	}

	return cmd
}
