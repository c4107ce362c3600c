package http

import (
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/proto"
)

// ContentTypeProtobuf is the media type of Protobuf response bodies.
const ContentTypeProtobuf = "application/x-protobuf"

// Protobuf creates a response carrying msg in binary wire format.
func Protobuf(status int, msg proto.Message) (*Response, error) {
	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal %T", msg)
	}
	resp := NewResponse(status, data)
	resp.Header.Set("Content-Type", ContentTypeProtobuf)
	return resp, nil
}
