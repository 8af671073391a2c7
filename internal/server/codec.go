package server

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/manekies/document-converter-app/internal/common"
)

// decode copies a Struct message into a Go request type through its JSON form.
func decode(in *structpb.Struct, out any) error {
	if in == nil {
		return nil
	}
	b, err := protojson.Marshal(in)
	if err != nil {
		return common.NewAppError("INVALID_INPUT", "request encoding", fmt.Errorf("%w: %v", common.ErrInvalidInput, err))
	}
	if err := json.Unmarshal(b, out); err != nil {
		return common.NewAppError("INVALID_INPUT", "request shape", fmt.Errorf("%w: %v", common.ErrInvalidInput, err))
	}
	return nil
}

// encode turns a Go response value into a Struct message.
func encode(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, common.NewAppError("INTERNAL", "response encoding", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, common.NewAppError("INTERNAL", "response encoding", err)
	}
	return out, nil
}
