package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slot-relayer/pkg/shared"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// newNode starts a JSON-RPC server answering each method with the result
// returned by results.
func newNode(t *testing.T, results func(method string) any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  results(req.Method),
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func signedTx(t *testing.T) *solana.Transaction {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(1, key.PublicKey(), solana.SystemProgramID).Build()},
		solana.Hash{1},
		solana.TransactionPayer(key.PublicKey()),
	)
	require.NoError(t, err)
	_, err = tx.Sign(func(pk solana.PublicKey) *solana.PrivateKey {
		if pk.Equals(key.PublicKey()) {
			return &key
		}
		return nil
	})
	require.NoError(t, err)
	return tx
}

func TestRPCClient_GetBalance(t *testing.T) {
	srv := newNode(t, func(method string) any {
		assert.Equal(t, "getBalance", method)
		return map[string]any{"context": map[string]any{"slot": 1}, "value": 1_000_000_000}
	})
	c := NewRPCClient(Options{RPCUrl: srv.URL})

	got, err := c.GetBalance(context.Background(), solana.SystemProgramID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_000), got)
}

func TestRPCClient_LatestBlockhash(t *testing.T) {
	want := solana.Hash{7, 7, 7}
	srv := newNode(t, func(method string) any {
		assert.Equal(t, "getLatestBlockhash", method)
		return map[string]any{
			"context": map[string]any{"slot": 1},
			"value":   map[string]any{"blockhash": want.String(), "lastValidBlockHeight": 200},
		}
	})
	c := NewRPCClient(Options{RPCUrl: srv.URL})

	got, err := c.LatestBlockhash(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRPCClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewRPCClient(Options{RPCUrl: url})
	_, err := c.GetBalance(context.Background(), solana.SystemProgramID)
	assert.ErrorIs(t, err, shared.ErrTransport)

	_, err = c.LatestBlockhash(context.Background())
	assert.ErrorIs(t, err, shared.ErrTransport)
}

func TestRPCClient_SendAndConfirm(t *testing.T) {
	tx := signedTx(t)
	var polls atomic.Int32
	srv := newNode(t, func(method string) any {
		switch method {
		case "sendTransaction":
			return tx.Signatures[0].String()
		case "getSignatureStatuses":
			// Not yet seen, then processed, then confirmed.
			status := []any{nil}
			switch polls.Add(1) {
			case 1:
			case 2:
				status[0] = map[string]any{"slot": 9, "confirmations": 0, "err": nil, "confirmationStatus": "processed"}
			default:
				status[0] = map[string]any{"slot": 9, "confirmations": nil, "err": nil, "confirmationStatus": "confirmed"}
			}
			return map[string]any{"context": map[string]any{"slot": 10}, "value": status}
		}
		t.Errorf("unexpected method %s", method)
		return nil
	})
	c := NewRPCClient(Options{RPCUrl: srv.URL, PollInterval: time.Millisecond})

	sig, err := c.SendAndConfirm(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, tx.Signatures[0], sig)
	assert.Equal(t, int32(3), polls.Load())
}

func TestRPCClient_SendAndConfirm_TxFailed(t *testing.T) {
	tx := signedTx(t)
	srv := newNode(t, func(method string) any {
		if method == "sendTransaction" {
			return tx.Signatures[0].String()
		}
		return map[string]any{
			"context": map[string]any{"slot": 10},
			"value": []any{map[string]any{
				"slot": 9, "confirmations": nil, "confirmationStatus": "confirmed",
				"err": map[string]any{"InstructionError": []any{0, "InsufficientFunds"}},
			}},
		}
	})
	c := NewRPCClient(Options{RPCUrl: srv.URL, PollInterval: time.Millisecond})

	_, err := c.SendAndConfirm(context.Background(), tx)
	assert.ErrorIs(t, err, shared.ErrTransport)
}

func TestRPCClient_SendAndConfirm_Timeout(t *testing.T) {
	tx := signedTx(t)
	srv := newNode(t, func(method string) any {
		if method == "sendTransaction" {
			return tx.Signatures[0].String()
		}
		return map[string]any{"context": map[string]any{"slot": 10}, "value": []any{nil}}
	})
	c := NewRPCClient(Options{RPCUrl: srv.URL, PollInterval: time.Millisecond, MaxPolls: 3})

	sig, err := c.SendAndConfirm(context.Background(), tx)
	assert.ErrorIs(t, err, shared.ErrTransport)
	assert.Equal(t, tx.Signatures[0], sig)
}

func TestRPCClient_Reached(t *testing.T) {
	finalized := NewRPCClient(Options{Commitment: shared.Finalized})
	assert.False(t, finalized.reached("confirmed"))
	assert.True(t, finalized.reached("finalized"))

	confirmed := NewRPCClient(Options{Commitment: shared.Confirmed})
	assert.False(t, confirmed.reached("processed"))
	assert.True(t, confirmed.reached("confirmed"))
}
