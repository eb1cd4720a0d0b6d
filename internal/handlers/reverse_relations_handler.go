package handlers

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/robuust/reverserelations/internal/entities"
	"github.com/robuust/reverserelations/internal/infrastructure/logger"
	"github.com/robuust/reverserelations/internal/repositories"
	"github.com/robuust/reverserelations/internal/services/relations"
	"github.com/robuust/reverserelations/internal/services/reverse"
)

// ReverseRelationsHandler handles ReverseRelations service gRPC requests
type ReverseRelationsHandler struct {
	resolver *reverse.Resolver
	forward  *relations.Service
	fields   repositories.FieldRepository
	elements repositories.ElementRepository
	logger   logger.Logger
}

// NewReverseRelationsHandler creates a new ReverseRelationsHandler
func NewReverseRelationsHandler(
	resolver *reverse.Resolver,
	forward *relations.Service,
	fields repositories.FieldRepository,
	elements repositories.ElementRepository,
	log logger.Logger,
) *ReverseRelationsHandler {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &ReverseRelationsHandler{
		resolver: resolver,
		forward:  forward,
		fields:   fields,
		elements: elements,
		logger:   log,
	}
}

// NormalizeValue handles the NormalizeValue RPC.
//
// Request: {field_uid, element_id, site_id, ids?}. Without ids the value is
// derived from stored relations; a list (or null) is taken as the posted value.
// An absent element_id describes an element that has not been saved yet.
func (h *ReverseRelationsHandler) NormalizeValue(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fieldUID, err := requireString(req, "field_uid")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	elementID, err := optionalInt(req, "element_id")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	siteID, err := requireInt(req, "site_id")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	ids, posted, err := idList(req, "ids")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	field, err := h.fields.GetByUID(ctx, fieldUID)
	if err != nil {
		return nil, toStatus(err, "failed to get field")
	}

	element := &entities.Element{SiteID: siteID}
	if elementID != 0 {
		element, err = h.elements.GetByID(ctx, elementID, siteID)
		if err != nil {
			return nil, toStatus(err, "failed to get element")
		}
	}

	var raw entities.RawValue = entities.LazyValue{}
	switch {
	case posted && len(ids) == 0:
		raw = entities.EmptyValue{}
	case posted:
		raw = entities.IDListValue(ids)
	}

	sourceIDs, err := h.resolver.SourceIDs(ctx, field, raw, element)
	if err != nil {
		h.logger.ErrorWithContext(ctx, "failed to normalize value",
			zap.String("field_uid", fieldUID),
			zap.Int64("element_id", elementID),
			zap.Error(err),
		)
		return nil, toStatus(err, "failed to normalize value")
	}

	resp, err := structpb.NewStruct(map[string]interface{}{
		"source_ids": idsToProtoList(sourceIDs),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return resp, nil
}

// GetEagerLoadingMap handles the GetEagerLoadingMap RPC.
// Request: {field_uid, element_ids, site_id}. Forward relation fields get
// their own map, so a host can load both directions through one call.
func (h *ReverseRelationsHandler) GetEagerLoadingMap(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fieldUID, err := requireString(req, "field_uid")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	elementIDs, _, err := idList(req, "element_ids")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	siteID, err := optionalInt(req, "site_id")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if len(elementIDs) > 0 && siteID == 0 {
		return nil, status.Error(codes.InvalidArgument, "site_id is required")
	}

	field, err := h.fields.GetByUID(ctx, fieldUID)
	if err != nil {
		return nil, toStatus(err, "failed to get field")
	}

	targets, err := h.elements.GetByIDs(ctx, elementIDs, siteID)
	if err != nil {
		return nil, toStatus(err, "failed to get elements")
	}

	var m *entities.EagerLoadMap
	if ft, ok := field.FieldType(); ok && !ft.Reverse {
		m, err = h.forward.EagerLoadingMap(ctx, field, targets)
	} else {
		m, err = h.resolver.GetEagerLoadingMap(ctx, field, targets)
	}
	if err != nil {
		h.logger.ErrorWithContext(ctx, "failed to build eager-loading map",
			zap.String("field_uid", fieldUID),
			zap.Int("batch", len(targets)),
			zap.Error(err),
		)
		return nil, toStatus(err, "failed to build eager-loading map")
	}

	resp, err := eagerLoadMapToStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return resp, nil
}

// BeforeElementSave handles the BeforeElementSave RPC, called by the host
// before it saves an element that carries the reverse field.
//
// Request: {field_uid, element_id?, canonical_id?, site_id, is_new, ids?}. An
// absent element_id describes an element that is not stored yet; canonical_id
// marks it as a new draft of a stored element. The response lists the sources
// the field had before the save, in their previous order, any status included.
// When the posted ids are given, removed_source_ids lists the previous sources
// missing from them.
func (h *ReverseRelationsHandler) BeforeElementSave(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fieldUID, err := requireString(req, "field_uid")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	elementID, err := optionalInt(req, "element_id")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	canonicalID, err := optionalInt(req, "canonical_id")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	siteID, err := requireInt(req, "site_id")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	isNew, err := optionalBool(req, "is_new")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	posted, hasPosted, err := idList(req, "ids")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	field, err := h.fields.GetByUID(ctx, fieldUID)
	if err != nil {
		return nil, toStatus(err, "failed to get field")
	}

	element := &entities.Element{SiteID: siteID, CanonicalID: canonicalID}
	if elementID != 0 {
		element, err = h.elements.GetByID(ctx, elementID, siteID)
		if err != nil {
			return nil, toStatus(err, "failed to get element")
		}
	}

	sc, proceed, err := h.resolver.BeforeElementSave(ctx, field, element, isNew, nil)
	if err != nil {
		h.logger.ErrorWithContext(ctx, "failed to capture previous sources",
			zap.String("field_uid", fieldUID),
			zap.Int64("element_id", elementID),
			zap.Bool("is_new", isNew),
			zap.Error(err),
		)
		return nil, toStatus(err, "failed to capture previous sources")
	}

	out := map[string]interface{}{
		"proceed":        proceed,
		"old_source_ids": idsToProtoList(sc.OldSourceIDs()),
	}
	if hasPosted {
		out["removed_source_ids"] = idsToProtoList(sc.RemovedSourceIDs(posted))
	}

	resp, err := structpb.NewStruct(out)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return resp, nil
}

// ListAvailableFields handles the ListAvailableFields RPC.
// Request: {field_uid}.
func (h *ReverseRelationsHandler) ListAvailableFields(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fieldUID, err := requireString(req, "field_uid")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	field, err := h.fields.GetByUID(ctx, fieldUID)
	if err != nil {
		return nil, toStatus(err, "failed to get field")
	}

	options, err := h.resolver.AvailableFields(ctx, field)
	if err != nil {
		return nil, toStatus(err, "failed to list fields")
	}

	list := make([]interface{}, 0, len(options))
	for _, o := range options {
		list = append(list, map[string]interface{}{
			"uid":   o.UID,
			"label": o.Label,
		})
	}

	resp, err := structpb.NewStruct(map[string]interface{}{"fields": list})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return resp, nil
}
