package geyser

import (
	"testing"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

func TestBlocksMetaRequest(t *testing.T) {
	req := BlocksMetaRequest("client", pb.CommitmentLevel_FINALIZED, nil)

	require.Contains(t, req.GetBlocksMeta(), "client")
	assert.NotNil(t, req.GetBlocksMeta()["client"])
	assert.Len(t, req.GetBlocksMeta(), 1)
	require.NotNil(t, req.Commitment)
	assert.Equal(t, pb.CommitmentLevel_FINALIZED, req.GetCommitment())
	assert.Nil(t, req.GetPing())

	assert.Empty(t, req.GetAccounts())
	assert.Empty(t, req.GetSlots())
	assert.Empty(t, req.GetTransactions())
	assert.Empty(t, req.GetBlocks())
	assert.Empty(t, req.GetEntry())
}

func TestBlocksMetaRequest_Ping(t *testing.T) {
	id := int32(7)
	req := BlocksMetaRequest("client", pb.CommitmentLevel_CONFIRMED, &id)

	require.NotNil(t, req.GetPing())
	assert.Equal(t, int32(7), req.GetPing().GetId())
	assert.Contains(t, req.GetBlocksMeta(), "client")
	assert.Equal(t, pb.CommitmentLevel_CONFIRMED, req.GetCommitment())
}

func TestBlocksMetaRequest_WireRoundTrip(t *testing.T) {
	req := BlocksMetaRequest("client", pb.CommitmentLevel_PROCESSED, nil)

	b, err := proto.Marshal(req)
	require.NoError(t, err)
	got := &pb.SubscribeRequest{}
	require.NoError(t, proto.Unmarshal(b, got))

	assert.True(t, proto.Equal(req, got))
	// An explicit processed commitment survives even though it is the zero value.
	require.NotNil(t, got.Commitment)
	assert.Equal(t, pb.CommitmentLevel_PROCESSED, *got.Commitment)
}
