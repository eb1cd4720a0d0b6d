package handlers

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/robuust/reverserelations/internal/entities"
	"github.com/robuust/reverserelations/internal/repositories"
	"github.com/robuust/reverserelations/internal/services/reverse"
)

// === Shared helpers for request decoding and error mapping ===

func requireString(req *structpb.Struct, key string) (string, error) {
	v, ok := req.GetFields()[key]
	if !ok || v.GetStringValue() == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v.GetStringValue(), nil
}

// optionalInt returns 0 when key is absent or null
func optionalInt(req *structpb.Struct, key string) (int64, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return 0, nil
	}
	if _, isNull := v.Kind.(*structpb.Value_NullValue); isNull {
		return 0, nil
	}
	return protoValueToID(v, key)
}

// optionalBool returns false when key is absent or null
func optionalBool(req *structpb.Struct, key string) (bool, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return false, nil
	}
	switch kind := v.Kind.(type) {
	case *structpb.Value_NullValue:
		return false, nil
	case *structpb.Value_BoolValue:
		return kind.BoolValue, nil
	default:
		return false, fmt.Errorf("%s must be a boolean", key)
	}
}

func requireInt(req *structpb.Struct, key string) (int64, error) {
	id, err := optionalInt(req, key)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, fmt.Errorf("%s is required", key)
	}
	return id, nil
}

// idList decodes a list of ids. present is false when key is absent.
func idList(req *structpb.Struct, key string) (ids []int64, present bool, err error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return nil, false, nil
	}

	switch kind := v.Kind.(type) {
	case *structpb.Value_NullValue:
		return []int64{}, true, nil
	case *structpb.Value_ListValue:
		values := kind.ListValue.GetValues()
		ids = make([]int64, 0, len(values))
		for i, item := range values {
			id, err := protoValueToID(item, fmt.Sprintf("%s[%d]", key, i))
			if err != nil {
				return nil, true, err
			}
			ids = append(ids, id)
		}
		return ids, true, nil
	default:
		return nil, true, fmt.Errorf("%s must be a list", key)
	}
}

func protoValueToID(v *structpb.Value, name string) (int64, error) {
	n, ok := v.Kind.(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	f := n.NumberValue
	if f < 0 || f != math.Trunc(f) || f > math.MaxInt64 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return int64(f), nil
}

func idsToProtoList(ids []int64) []interface{} {
	list := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		list = append(list, id)
	}
	return list
}

func eagerLoadMapToStruct(m *entities.EagerLoadMap) (*structpb.Struct, error) {
	pairs := make([]interface{}, 0, len(m.Pairs))
	for _, p := range m.Pairs {
		pairs = append(pairs, map[string]interface{}{
			"source": p.Source,
			"target": p.Target,
		})
	}

	var siteID interface{}
	if m.Criteria.SiteID != nil {
		siteID = *m.Criteria.SiteID
	}

	return structpb.NewStruct(map[string]interface{}{
		"element_type": m.ElementType,
		"map":          pairs,
		"criteria": map[string]interface{}{
			"site_id": siteID,
		},
	})
}

// toStatus maps resolver and repository errors to gRPC status errors
func toStatus(err error, msg string) error {
	switch {
	case errors.Is(err, reverse.ErrTargetFieldNotFound):
		return status.Errorf(codes.FailedPrecondition, "%s: %v", msg, err)
	case errors.Is(err, reverse.ErrUnsupportedFieldType):
		return status.Errorf(codes.InvalidArgument, "%s: %v", msg, err)
	case errors.Is(err, repositories.ErrNotFound):
		return status.Errorf(codes.NotFound, "%s: %v", msg, err)
	default:
		return status.Errorf(codes.Internal, "%s: %v", msg, err)
	}
}
