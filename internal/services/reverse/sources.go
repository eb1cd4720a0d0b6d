package reverse

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/robuust/reverserelations/internal/entities"
)

// ResolveInputSourceIDs turns a field's input sources into group ids.
//
// The "*" sentinel passes through unchanged. Otherwise every "type:uid"
// specifier contributes its uid (the type prefix is ignored) and all uids are
// resolved in one lookup. Specifiers that are malformed or name an unknown
// group are dropped, so the restriction may end up empty, which admits no source.
func (r *Resolver) ResolveInputSourceIDs(ctx context.Context, kind entities.SourceKind, sources entities.InputSources) (entities.SourceRestriction, error) {
	if sources.All {
		return entities.Unrestricted(), nil
	}

	uids := make([]string, 0, len(sources.Specifiers))
	for _, specifier := range sources.Specifiers {
		_, uid, ok := strings.Cut(specifier, ":")
		if !ok || uid == "" {
			r.logger.DebugWithContext(ctx, "dropping malformed source specifier",
				zap.String("kind", kind.Name),
				zap.String("specifier", specifier),
			)
			continue
		}
		uids = append(uids, uid)
	}

	ids, err := r.groups.IDsByUIDs(ctx, kind, uids)
	if err != nil {
		return entities.SourceRestriction{}, fmt.Errorf("failed to resolve input sources: %w", err)
	}

	if dropped := len(sources.Specifiers) - len(ids); dropped > 0 {
		r.logger.DebugWithContext(ctx, "input sources did not resolve",
			zap.String("kind", kind.Name),
			zap.Int("specifiers", len(sources.Specifiers)),
			zap.Int("resolved", len(ids)),
		)
		r.recorder.RecordDroppedSources(kind.Name, dropped)
	}

	return entities.SourceRestriction{GroupIDs: ids}, nil
}
