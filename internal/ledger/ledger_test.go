package ledger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foadkaksamandi-blip/soma-customer-app/internal/domain"
)

func TestDebit(t *testing.T) {
	tests := []struct {
		name    string
		initial uint64
		amount  uint64
		wantErr error
		want    uint64
	}{
		{name: "covers amount", initial: 100000, amount: 5000, want: 95000},
		{name: "exact balance", initial: 5000, amount: 5000, want: 0},
		{name: "insufficient", initial: 1000, amount: 5000, wantErr: domain.ErrInsufficientBalance, want: 1000},
		{name: "zero amount", initial: 1000, amount: 0, want: 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.initial)
			err := l.Debit(tt.amount)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, l.Balance())
		})
	}
}

func TestCreditRestoresDebit(t *testing.T) {
	l := New(1000)
	require.NoError(t, l.Debit(400))
	l.Credit(400)
	assert.Equal(t, uint64(1000), l.Balance())
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	l := New(100)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Debit(10) == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, uint64(0), l.Balance())
}
