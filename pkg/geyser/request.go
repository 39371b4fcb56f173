package geyser

import (
	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
)

// BlocksMetaRequest subscribes to block-meta updates only, labelled filter.
// A non-nil ping turns it into a keepalive reply that keeps the same filter.
func BlocksMetaRequest(filter string, commitment pb.CommitmentLevel, ping *int32) *pb.SubscribeRequest {
	req := &pb.SubscribeRequest{
		BlocksMeta: map[string]*pb.SubscribeRequestFilterBlocksMeta{
			filter: {},
		},
		Commitment: &commitment,
	}
	if ping != nil {
		req.Ping = &pb.SubscribeRequestPing{Id: *ping}
	}
	return req
}
