package somapay

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foadkaksamandi-blip/soma-customer-app/internal/domain"
)

// newPipeApp wires an App to the client end of an in-memory pipe and returns
// the merchant end for the test to script.
func newPipeApp(t *testing.T, opts ...Option) (*App, net.Conn) {
	t.Helper()

	client, merchant := net.Pipe()
	opts = append(opts, WithDialer(func(ctx context.Context) (Stream, error) {
		return client, nil
	}))

	app, err := New(DefaultConfig(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		app.Close()
		merchant.Close()
	})

	require.NoError(t, app.Connect(context.Background()))
	return app, merchant
}

// readLine reads one newline-terminated frame from the merchant end.
func readLine(t *testing.T, conn net.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	return strings.TrimSuffix(line, "\n")
}

func TestPayConfirmedEndToEnd(t *testing.T) {
	app, merchant := newPipeApp(t)

	received := make(chan string, 1)
	go func() {
		received <- readLine(t, merchant)
		merchant.Write([]byte("PAYMENT_CONFIRMED\n"))
	}()

	tx, err := app.Pay(5000)
	require.NoError(t, err)
	require.Equal(t, domain.TransactionAwaitingConfirmation, tx.Status)
	require.Equal(t, "PAY:5000:"+tx.Code, <-received)

	require.Eventually(t, func() bool {
		cur, ok := app.CurrentTransaction()
		return ok && cur.Status == domain.TransactionConfirmed
	}, 2*time.Second, 10*time.Millisecond)

	cur, _ := app.CurrentTransaction()
	require.Equal(t, domain.ConfirmedViaFrame, cur.ConfirmedVia)
	require.Equal(t, uint64(95000), app.Balance())
}

func TestReceiptReachesObserver(t *testing.T) {
	receipts := make(chan string, 1)
	app, merchant := newPipeApp(t, WithObserver(receiptObserver{receipts: receipts}))

	go func() {
		readLine(t, merchant)
		merchant.Write([]byte("PAYMENT_CONFIRMED\nRECEIPT:store=SOMA;total=5000\n"))
	}()

	_, err := app.Pay(5000)
	require.NoError(t, err)

	select {
	case data := <-receipts:
		require.Equal(t, "store=SOMA;total=5000", data)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for receipt")
	}

	cur, ok := app.CurrentTransaction()
	require.True(t, ok)
	require.Equal(t, "store=SOMA;total=5000", cur.Receipt)
}

func TestMerchantDisconnectRollsBack(t *testing.T) {
	app, merchant := newPipeApp(t)

	go func() {
		readLine(t, merchant)
		merchant.Close()
	}()

	_, err := app.Pay(5000)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		cur, ok := app.CurrentTransaction()
		return ok && cur.Status == domain.TransactionFailed
	}, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, uint64(100000), app.Balance())
	require.Equal(t, domain.SessionClosed, app.SessionState())
}

func TestPayRequiresConnection(t *testing.T) {
	app, err := New(DefaultConfig(), WithDialer(func(ctx context.Context) (Stream, error) {
		t.Fatal("dialer should not be called")
		return nil, nil
	}))
	require.NoError(t, err)
	defer app.Close()

	_, err = app.Pay(5000)
	require.ErrorIs(t, err, domain.ErrNotConnected)
}

func TestConnectTwiceRejected(t *testing.T) {
	app, _ := newPipeApp(t)
	require.ErrorIs(t, app.Connect(context.Background()), domain.ErrSessionOpen)
}

func TestDisconnectAllowsReconnect(t *testing.T) {
	client2, merchant2 := net.Pipe()
	defer merchant2.Close()

	client1, merchant1 := net.Pipe()
	defer merchant1.Close()

	conns := make(chan net.Conn, 2)
	conns <- client1
	conns <- client2

	app, err := New(DefaultConfig(), WithDialer(func(ctx context.Context) (Stream, error) {
		return <-conns, nil
	}))
	require.NoError(t, err)
	defer app.Close()

	require.NoError(t, app.Connect(context.Background()))
	require.NoError(t, app.Disconnect())
	require.NoError(t, app.Connect(context.Background()))
	require.Equal(t, domain.SessionConnected, app.SessionState())
}

func TestNewRequiresAddrOrDialer(t *testing.T) {
	_, err := New(Config{})
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
}

// receiptObserver forwards receipt data to a channel and drops the rest.
type receiptObserver struct {
	receipts chan string
}

func (o receiptObserver) OnStatusChanged(status domain.TransactionStatus, message string) {}
func (o receiptObserver) OnReceipt(data string)           { o.receipts <- data }
func (o receiptObserver) OnBalanceChanged(balance uint64) {}
