package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/liqwatch/internal/alert"
	"github.com/rickgao/liqwatch/internal/model"
	"github.com/rickgao/liqwatch/internal/telegram"
	"github.com/rickgao/liqwatch/internal/wallet"
)

const (
	funded = "0x1234567890abcdef1234567890abcdef12345678"
	empty  = "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd"
	broken = "0x0000000000000000000000000000000000000001"
)

type fakeAccounts struct {
	calls int
}

func (f *fakeAccounts) GetAccountState(_ context.Context, addr string) (model.AccountState, error) {
	f.calls++
	switch addr {
	case funded:
		return model.AccountState{AccountValue: 1500}, nil
	case broken:
		return model.AccountState{}, errors.New("fetch clearinghouseState: 500")
	default:
		return model.AccountState{}, nil
	}
}

type recorder struct {
	mu      sync.Mutex
	replies map[int64][]string
}

func (r *recorder) Send(_ context.Context, chat int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.replies == nil {
		r.replies = make(map[int64][]string)
	}
	r.replies[chat] = append(r.replies[chat], text)
	return nil
}

func newBot(t *testing.T) (*Bot, *wallet.Registry, *fakeAccounts, *recorder) {
	t.Helper()
	reg := wallet.NewRegistry(nil, nil)
	accounts := &fakeAccounts{}
	rec := &recorder{}
	return New(reg, accounts, rec, alert.NewFormatter(""), nil), reg, accounts, rec
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		name string
		args []string
		ok   bool
	}{
		{"/start", "start", []string{}, true},
		{"/add 0xabc", "add", []string{"0xabc"}, true},
		{"/ADD@LiqBot  0xabc  extra", "add", []string{"0xabc", "extra"}, true},
		{"hello", "", nil, false},
		{"", "", nil, false},
		{"/", "", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			name, args, ok := ParseCommand(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.name, name)
			if tt.ok {
				assert.Equal(t, tt.args, args)
			}
		})
	}
}

func TestAdd(t *testing.T) {
	b, reg, accounts, _ := newBot(t)
	ctx := context.Background()

	reply := b.Execute(ctx, Command{Name: "add", Args: []string{funded}, Subscriber: 7})
	require.Len(t, reply, 1)
	assert.Equal(t, "Wallet [0x12345678...12345678](https://app.hyperliquid.xyz/explorer/address/"+funded+") added to monitoring list.", reply[0])
	assert.Equal(t, []int64{7}, reg.Subscribers(funded))

	reply = b.Execute(ctx, Command{Name: "add", Args: []string{strings.ToUpper(funded[2:])}, Subscriber: 7})
	assert.Equal(t, []string{replyInvalidAddress}, reply)

	reply = b.Execute(ctx, Command{Name: "add", Args: []string{"0x" + strings.ToUpper(funded[2:])}, Subscriber: 7})
	assert.Contains(t, reply[0], "already monitoring")
	assert.Equal(t, 1, accounts.calls, "no lookup for an existing subscription")
}

func TestAddRejections(t *testing.T) {
	b, reg, _, _ := newBot(t)
	ctx := context.Background()

	assert.Equal(t, []string{replyMissingAddress}, b.Execute(ctx, Command{Name: "add", Subscriber: 1}))
	assert.Equal(t, []string{replyInvalidAddress}, b.Execute(ctx, Command{Name: "add", Args: []string{"0x123"}, Subscriber: 1}))
	assert.Equal(t, []string{replyNoFunds}, b.Execute(ctx, Command{Name: "add", Args: []string{empty}, Subscriber: 1}))
	assert.Equal(t, []string{replyFetchFailed}, b.Execute(ctx, Command{Name: "add", Args: []string{broken}, Subscriber: 1}))

	assert.Zero(t, reg.Len())
}

func TestListAndRemove(t *testing.T) {
	b, reg, _, _ := newBot(t)
	ctx := context.Background()

	assert.Equal(t, []string{replyNoWallets}, b.Execute(ctx, Command{Name: "list", Subscriber: 9}))

	_, err := reg.Add(funded, 9)
	require.NoError(t, err)
	_, err = reg.Add(empty, 9)
	require.NoError(t, err)

	list := b.Execute(ctx, Command{Name: "list", Subscriber: 9})
	require.Len(t, list, 1)
	lines := strings.Split(list[0], "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "You are monitoring the following wallets:", lines[0])
	assert.Contains(t, lines[1], "[0x12345678...12345678]")
	assert.Contains(t, lines[2], "[0xabcdefab...cdefabcd]")

	reply := b.Execute(ctx, Command{Name: "remove", Args: []string{funded}, Subscriber: 9})
	assert.True(t, strings.HasPrefix(reply[0], "Stopped monitoring wallet "))
	assert.Empty(t, reg.Subscribers(funded))

	reply = b.Execute(ctx, Command{Name: "remove", Args: []string{funded}, Subscriber: 9})
	assert.True(t, strings.HasPrefix(reply[0], "You are not monitoring wallet "))

	assert.Equal(t, []string{replyMissingAddress}, b.Execute(ctx, Command{Name: "remove", Subscriber: 9}))
	assert.Equal(t, []string{replyInvalidAddress}, b.Execute(ctx, Command{Name: "remove", Args: []string{"nope"}, Subscriber: 9}))
}

func TestStartAndHelp(t *testing.T) {
	b, _, _, _ := newBot(t)
	ctx := context.Background()

	start := b.Execute(ctx, Command{Name: "start", FirstName: "Ada_L"})
	require.Len(t, start, 2)
	assert.Equal(t, "GM Ada\\_L!\nDon't wanna get liquidated? I'm here to help you.", start[0])
	assert.Equal(t, helpText, start[1])

	assert.Equal(t, []string{helpText}, b.Execute(ctx, Command{Name: "help"}))
	assert.Empty(t, b.Execute(ctx, Command{Name: "sell"}))
}

func TestHandleUpdate(t *testing.T) {
	b, reg, _, rec := newBot(t)
	ctx := context.Background()

	b.HandleUpdate(ctx, telegram.Update{
		UpdateID: 1,
		Message: &telegram.Message{
			From: &telegram.User{ID: 42, FirstName: "Ada"},
			Chat: telegram.Chat{ID: 42, Type: "private"},
			Text: "/add " + funded,
		},
	})
	b.HandleUpdate(ctx, telegram.Update{
		UpdateID: 2,
		Message:  &telegram.Message{Chat: telegram.Chat{ID: 42}, Text: "gm"},
	})
	b.HandleUpdate(ctx, telegram.Update{
		UpdateID: 3,
		Message:  &telegram.Message{Chat: telegram.Chat{ID: 42}, Text: "/sell BTC"},
	})
	b.HandleUpdate(ctx, telegram.Update{UpdateID: 4})

	assert.Equal(t, []int64{42}, reg.Subscribers(funded))
	require.Len(t, rec.replies[42], 1)
	assert.Contains(t, rec.replies[42][0], "added to monitoring list")
}
