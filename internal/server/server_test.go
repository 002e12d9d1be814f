package server

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moussakabalan/multi-user-expense-tracker/internal/model/storage"
)

type testServerConfig struct{}

func (testServerConfig) Port() int {
	return 0 // let the kernel pick a free port
}

func (testServerConfig) IdleTimeout() time.Duration {
	return time.Minute
}

type testStorageConfig struct {
	dir string
}

func (c testStorageConfig) DataDir() string {
	return c.dir
}

func startServer(t *testing.T) (*Server, string) {
	t.Helper()
	store, err := storage.NewFileStorage(testStorageConfig{dir: t.TempDir()})
	require.NoError(t, err)

	srv, err := New(testServerConfig{}, store)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})

	return srv, srv.Addr().String()
}

type client struct {
	conn   net.Conn
	reader *bufio.Reader
}

func dial(t *testing.T, addr string) *client {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &client{conn: conn, reader: bufio.NewReader(conn)}
}

func (c *client) send(t *testing.T, line string) {
	t.Helper()
	_, err := fmt.Fprintf(c.conn, "%s\n", line)
	require.NoError(t, err)
}

func (c *client) readLine(t *testing.T) string {
	t.Helper()
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	line, err := c.reader.ReadString('\n')
	require.NoError(t, err)
	return strings.TrimRight(line, "\n")
}

func Test_Server_SingleClientScenario(t *testing.T) {
	_, addr := startServer(t)
	c := dial(t, addr)

	assert.True(t, strings.HasPrefix(c.readLine(t), "CONNECTION SUCCESSFUL|"))

	c.send(t, "ADD_EXPENSE|alice|42.50|Food|2024-03-01|lunch")
	assert.Equal(t, "SUCCESS|Expense added successfully", c.readLine(t))

	c.send(t, "GET_EXPENSES|alice")
	assert.Equal(t, "SUCCESS|1", c.readLine(t))
	assert.Contains(t, c.readLine(t), `"category":"Food"`)

	c.send(t, "QUIT")
	assert.Equal(t, "SUCCESS|Goodbye", c.readLine(t))
}

func Test_Server_ConcurrentClientsShareStorage(t *testing.T) {
	srv, addr := startServer(t)
	const clients = 4
	const perClient = 10

	var wg sync.WaitGroup
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := dial(t, addr)
			c.readLine(t)
			for j := 0; j < perClient; j++ {
				c.send(t, fmt.Sprintf("ADD_EXPENSE|shared|1.00|Food|2024-03-01|c%d-%d", i, j))
				assert.Equal(t, "SUCCESS|Expense added successfully", c.readLine(t))
			}
			c.send(t, "QUIT")
			c.readLine(t)
		}(i)
	}
	wg.Wait()

	c := dial(t, addr)
	c.readLine(t)
	c.send(t, "GET_EXPENSES|shared")
	assert.Equal(t, fmt.Sprintf("SUCCESS|%d", clients*perClient), c.readLine(t))
	for i := 0; i < clients*perClient; i++ {
		c.readLine(t)
	}
	c.send(t, "QUIT")
	c.readLine(t)

	require.Eventually(t, func() bool {
		return srv.ActiveSessions() == 0
	}, 2*time.Second, 10*time.Millisecond, "all sessions should be untracked")
}

func Test_Server_SessionSetTracksConnections(t *testing.T) {
	srv, addr := startServer(t)

	c1 := dial(t, addr)
	c1.readLine(t)
	c2 := dial(t, addr)
	c2.readLine(t)

	require.Eventually(t, func() bool {
		return srv.ActiveSessions() == 2
	}, 2*time.Second, 10*time.Millisecond)

	// Both a clean QUIT and an unannounced close must untrack the session.
	c1.send(t, "QUIT")
	c1.readLine(t)
	require.NoError(t, c2.conn.Close())

	require.Eventually(t, func() bool {
		return srv.ActiveSessions() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func Test_Server_ShutdownClosesLiveSessions(t *testing.T) {
	store, err := storage.NewFileStorage(testStorageConfig{dir: t.TempDir()})
	require.NoError(t, err)
	srv, err := New(testServerConfig{}, store)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx)
	}()

	c := dial(t, srv.Addr().String())
	c.readLine(t)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop while a session was open")
	}

	// The session's connection is gone too.
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, err = c.reader.ReadString('\n')
	assert.Error(t, err)
}
